package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

func sampleDesign(url string) *fulfillment.DesignSet {
	return &fulfillment.DesignSet{Front: &fulfillment.SideDesign{Print: url}}
}

func TestInMemoryDesignCache_GetSet(t *testing.T) {
	c := NewInMemoryDesignCache(10, 0)
	defer c.Close()
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		set, ok, err := c.Get(ctx, "shop:1")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, set)
	})

	t.Run("hit", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "shop:2", sampleDesign("https://x/p.png")))

		set, ok, err := c.Get(ctx, "shop:2")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "https://x/p.png", set.Front.Print)
	})

	t.Run("negative result is cached", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "shop:3", nil))

		set, ok, err := c.Get(ctx, "shop:3")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Nil(t, set)
	})

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestInMemoryDesignCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewInMemoryDesignCache(3, 0)
	defer c.Close()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), sampleDesign("u")))
	}
	_, ok, _ := c.Get(ctx, "k1")
	require.True(t, ok)

	require.NoError(t, c.Set(ctx, "k4", sampleDesign("u")))

	assert.Equal(t, 3, c.Len())
	_, ok, _ = c.Get(ctx, "k2")
	assert.False(t, ok, "k2 was least recently used")
	for _, k := range []string{"k1", "k3", "k4"} {
		_, ok, _ = c.Get(ctx, k)
		assert.True(t, ok, k)
	}
}

func TestInMemoryDesignCache_Expires(t *testing.T) {
	c := NewInMemoryDesignCache(10, 20*time.Millisecond)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", sampleDesign("u")))
	time.Sleep(40 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemoryDesignCache_CloseIsIdempotent(t *testing.T) {
	c := NewInMemoryDesignCache(1, time.Minute)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (*fulfillment.DesignSet, bool, error) {
	return nil, false, errors.New("redis down")
}

func (failingStore) Set(context.Context, string, *fulfillment.DesignSet) error {
	return errors.New("redis down")
}

func TestTieredDesignCache(t *testing.T) {
	ctx := context.Background()

	t.Run("L2 hit populates L1", func(t *testing.T) {
		l1 := NewInMemoryDesignCache(10, 0)
		l2 := NewInMemoryDesignCache(10, 0)
		defer l1.Close()
		defer l2.Close()
		require.NoError(t, l2.Set(ctx, "k", sampleDesign("https://x/p.png")))

		c := NewTieredDesignCache(l1, l2, nil)
		set, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "https://x/p.png", set.Front.Print)
		assert.Equal(t, 1, l1.Len())

		_, _, _ = c.Get(ctx, "k")
		l1Hits, l2Hits, misses := c.Stats()
		assert.Equal(t, int64(1), l1Hits)
		assert.Equal(t, int64(1), l2Hits)
		assert.Equal(t, int64(0), misses)
	})

	t.Run("set writes both tiers", func(t *testing.T) {
		l1 := NewInMemoryDesignCache(10, 0)
		l2 := NewInMemoryDesignCache(10, 0)
		defer l1.Close()
		defer l2.Close()

		c := NewTieredDesignCache(l1, l2, nil)
		require.NoError(t, c.Set(ctx, "k", nil))

		_, ok, _ := l1.Get(ctx, "k")
		assert.True(t, ok)
		_, ok, _ = l2.Get(ctx, "k")
		assert.True(t, ok)
	})

	t.Run("L2 failure is a miss", func(t *testing.T) {
		l1 := NewInMemoryDesignCache(10, 0)
		defer l1.Close()

		c := NewTieredDesignCache(l1, failingStore{}, nil)
		_, ok, err := c.Get(ctx, "k")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, c.Set(ctx, "k", sampleDesign("u")))

		_, ok, _ = c.Get(ctx, "k")
		assert.True(t, ok, "L1 still serves")
	})
}
