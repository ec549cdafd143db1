// Package imageproxy serves remote PNGs with their pHYs resolution rewritten
// to a requested DPI, optionally caching the rewritten bytes in an object store.
package imageproxy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/infrastructure/storage"
)

// DefaultDPI applies when a request carries no dpi
const DefaultDPI = 300

// MaxDPI is the largest dpi whose pixels per metre fit a pHYs field
const MaxDPI = math.MaxUint32 * metersPerInch

const (
	defaultMaxBytes = 50 * 1024 * 1024
	defaultTimeout  = 30 * time.Second

	contentTypePNG    = "image/png"
	contentTypeBinary = "application/octet-stream"
)

var (
	// ErrBadSource is returned for a src that is not an absolute http(s) URL
	ErrBadSource = errors.New("imageproxy: bad src")
	// ErrBadDPI is returned for a dpi that is not a finite number in (0, MaxDPI]
	ErrBadDPI = errors.New("imageproxy: bad dpi")
	// ErrFetchFailed is returned when the source could not be downloaded
	ErrFetchFailed = errors.New("imageproxy: fetch src failed")
	// ErrTooLarge is returned when the source exceeds the size limit
	ErrTooLarge = errors.New("imageproxy: source too large")
)

// CacheRecorder observes object-store cache lookups
type CacheRecorder interface {
	ObserveImageCache(hit bool)
}

// Image is a proxied image
type Image struct {
	Data        []byte
	ContentType string
	// Rewritten is false for non-PNG passthrough
	Rewritten bool
	Cached    bool
}

// Proxy downloads and rewrites images
type Proxy struct {
	httpClient *http.Client
	store      storage.ObjectStore
	recorder   CacheRecorder
	maxBytes   int64
	logger     *zap.Logger
}

// Option configures a Proxy
type Option func(*Proxy)

// WithHTTPClient overrides the download client
func WithHTTPClient(c *http.Client) Option {
	return func(p *Proxy) { p.httpClient = c }
}

// WithStore enables caching of rewritten PNGs
func WithStore(s storage.ObjectStore) Option {
	return func(p *Proxy) { p.store = s }
}

// WithCacheRecorder sets the cache hit/miss observer
func WithCacheRecorder(r CacheRecorder) Option {
	return func(p *Proxy) { p.recorder = r }
}

// WithMaxBytes caps the downloaded source size
func WithMaxBytes(n int64) Option {
	return func(p *Proxy) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Proxy) { p.logger = l }
}

// New creates a Proxy
func New(opts ...Option) *Proxy {
	p := &Proxy{
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxBytes:   defaultMaxBytes,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseDPI reads the dpi query value; empty means DefaultDPI
func ParseDPI(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultDPI, nil
	}
	dpi, err := strconv.ParseFloat(raw, 64)
	if err != nil || !validDPI(dpi) {
		return 0, fmt.Errorf("%w: %q", ErrBadDPI, raw)
	}
	return dpi, nil
}

func validDPI(dpi float64) bool {
	return dpi > 0 && dpi <= MaxDPI && !math.IsInf(dpi, 0)
}

// CacheKey is the object key of a rewritten source at a dpi
func CacheKey(src string, dpi float64) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:]) + "-" + strconv.FormatFloat(dpi, 'f', -1, 64) + ".png"
}

// Fetch downloads src and, when it is a PNG, rewrites its resolution to dpi.
// Non-PNG bodies are returned as downloaded with the upstream content type.
func (p *Proxy) Fetch(ctx context.Context, src string, dpi float64) (*Image, error) {
	if err := validateSource(src); err != nil {
		return nil, err
	}
	if !validDPI(dpi) {
		return nil, ErrBadDPI
	}

	key := CacheKey(src, dpi)
	if img := p.lookup(ctx, key); img != nil {
		return img, nil
	}

	data, contentType, err := p.download(ctx, src)
	if err != nil {
		return nil, err
	}
	if !IsPNG(data) {
		if contentType == "" {
			contentType = contentTypeBinary
		}
		return &Image{Data: data, ContentType: contentType}, nil
	}

	out, err := SetDPI(data, dpi)
	if err != nil {
		return nil, err
	}
	img := &Image{Data: out, ContentType: contentTypePNG, Rewritten: true}
	p.save(ctx, key, img)
	return img, nil
}

func (p *Proxy) lookup(ctx context.Context, key string) *Image {
	if p.store == nil {
		return nil
	}
	obj, err := p.store.Get(ctx, key)
	if err != nil {
		p.logger.Warn("image cache lookup failed", zap.String("key", key), zap.Error(err))
	}
	hit := err == nil && obj != nil
	if p.recorder != nil {
		p.recorder.ObserveImageCache(hit)
	}
	if !hit {
		return nil
	}
	return &Image{Data: obj.Data, ContentType: contentTypePNG, Rewritten: true, Cached: true}
}

func (p *Proxy) save(ctx context.Context, key string, img *Image) {
	if p.store == nil {
		return
	}
	if err := p.store.Put(ctx, key, &storage.Object{Data: img.Data, ContentType: img.ContentType}); err != nil {
		p.logger.Warn("image cache store failed", zap.String("key", key), zap.Error(err))
	}
}

func (p *Proxy) download(ctx context.Context, src string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBadSource, err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, "", ErrTooLarge
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func validateSource(src string) error {
	u, err := url.Parse(src)
	if err != nil || u.Host == "" {
		return ErrBadSource
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	}
	return ErrBadSource
}
