package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/infrastructure/config"
)

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr string
	}{
		{"missing bucket", config.StorageConfig{AccessKey: "k", SecretKey: "s"}, "bucket is required"},
		{"missing access key", config.StorageConfig{Bucket: "b", SecretKey: "s"}, "access key is required"},
		{"missing secret key", config.StorageConfig{Bucket: "b", AccessKey: "k"}, "secret key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3ObjectStorage(&tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("valid config creates storage", func(t *testing.T) {
		storage, err := NewS3ObjectStorage(&config.StorageConfig{
			Bucket:       "png-cache",
			AccessKey:    "k",
			SecretKey:    "s",
			Endpoint:     "localhost:9000",
			KeyPrefix:    "/pngdpi/",
			UsePathStyle: true,
		}, WithLogger(zap.NewNop()), WithCacheControl("no-store"))
		require.NoError(t, err)
		assert.Equal(t, "png-cache", storage.GetBucket())
		assert.Equal(t, "pngdpi", storage.keyPrefix)
		assert.Equal(t, "no-store", storage.cacheControl)
		assert.Equal(t, "pngdpi/a/b.png", storage.fullKey("/a/b.png"))
	})
}

// fakeS3 is a minimal path-style S3 endpoint
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	puts    []*http.Request
}

func newFakeS3(t *testing.T) (*fakeS3, *S3ObjectStorage) {
	t.Helper()
	f := &fakeS3{objects: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			body, ok := f.objects[r.URL.Path]
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
				return
			}
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte(body))
		case http.MethodPut:
			f.puts = append(f.puts, r.Clone(context.Background()))
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)

	storage, err := NewS3ObjectStorage(&config.StorageConfig{
		Bucket:       "png-cache",
		AccessKey:    "k",
		SecretKey:    "s",
		Endpoint:     srv.URL,
		KeyPrefix:    "pngdpi",
		UsePathStyle: true,
	})
	require.NoError(t, err)
	return f, storage
}

func TestS3ObjectStorage_Get(t *testing.T) {
	f, storage := newFakeS3(t)
	f.objects["/png-cache/pngdpi/abc-300.png"] = "PNGDATA"
	ctx := context.Background()

	obj, err := storage.Get(ctx, "abc-300.png")
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, "PNGDATA", string(obj.Data))
	assert.Equal(t, "image/png", obj.ContentType)

	t.Run("missing key is a miss", func(t *testing.T) {
		obj, err := storage.Get(ctx, "nope.png")
		require.NoError(t, err)
		assert.Nil(t, obj)
	})

	t.Run("empty key returns error", func(t *testing.T) {
		_, err := storage.Get(ctx, "")
		assert.ErrorIs(t, err, ErrKeyRequired)
	})
}

func TestS3ObjectStorage_Put(t *testing.T) {
	f, storage := newFakeS3(t)

	err := storage.Put(context.Background(), "abc-300.png", &Object{Data: []byte("PNG"), ContentType: "image/png"})
	require.NoError(t, err)

	require.Len(t, f.puts, 1)
	put := f.puts[0]
	assert.Equal(t, "/png-cache/pngdpi/abc-300.png", put.URL.Path)
	assert.Equal(t, "image/png", put.Header.Get("Content-Type"))
	assert.True(t, strings.Contains(put.Header.Get("Cache-Control"), "immutable"))

	assert.ErrorIs(t, storage.Put(context.Background(), "", &Object{}), ErrKeyRequired)
}

// Integration tests run against a real S3-compatible service when
// INTEGRATION_TEST=1 and RustFS/MinIO listens on localhost:9000.
func TestIntegration_PutAndGet(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "1" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=1 and run RustFS to enable.")
	}

	storage, err := NewS3ObjectStorage(&config.StorageConfig{
		Bucket:       "test-integration",
		AccessKey:    "rustfsadmin",
		SecretKey:    "rustfsadmin123",
		Endpoint:     "http://localhost:9000",
		UsePathStyle: true,
	})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, storage.EnsureBucket(ctx))
	require.NoError(t, storage.EnsureBucket(ctx))

	require.NoError(t, storage.Put(ctx, "integration/a.png", &Object{Data: []byte("hello"), ContentType: "image/png"}))
	obj, err := storage.Get(ctx, "integration/a.png")
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, "hello", string(obj.Data))
}
