package cache

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// TieredDesignCache reads through a local L1 to a shared L2.
// L2 failures are logged and treated as misses; a lookup is never failed by the cache.
type TieredDesignCache struct {
	l1     DesignStore
	l2     DesignStore
	logger *zap.Logger

	l1Hits atomic.Int64
	l2Hits atomic.Int64
	misses atomic.Int64
}

// NewTieredDesignCache creates a two-tier design cache
func NewTieredDesignCache(l1, l2 DesignStore, logger *zap.Logger) *TieredDesignCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredDesignCache{l1: l1, l2: l2, logger: logger}
}

// Get retrieves a lookup from cache (L1 -> L2)
func (c *TieredDesignCache) Get(ctx context.Context, key string) (*fulfillment.DesignSet, bool, error) {
	set, ok, err := c.l1.Get(ctx, key)
	if err == nil && ok {
		c.l1Hits.Add(1)
		return set, true, nil
	}

	set, ok, err = c.l2.Get(ctx, key)
	if err != nil {
		c.logger.Warn("L2 design cache error", zap.String("key", key), zap.Error(err))
		c.misses.Add(1)
		return nil, false, nil
	}
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}

	c.l2Hits.Add(1)
	if err := c.l1.Set(ctx, key, set); err != nil {
		c.logger.Warn("Failed to populate L1 design cache", zap.String("key", key), zap.Error(err))
	}
	return set, true, nil
}

// Set writes the lookup to both tiers
func (c *TieredDesignCache) Set(ctx context.Context, key string, set *fulfillment.DesignSet) error {
	if err := c.l1.Set(ctx, key, set); err != nil {
		c.logger.Warn("Failed to write L1 design cache", zap.String("key", key), zap.Error(err))
	}
	if err := c.l2.Set(ctx, key, set); err != nil {
		c.logger.Warn("Failed to write L2 design cache", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// Stats returns L1 hits, L2 hits and misses
func (c *TieredDesignCache) Stats() (l1Hits, l2Hits, misses int64) {
	return c.l1Hits.Load(), c.l2Hits.Load(), c.misses.Load()
}

var _ DesignStore = (*TieredDesignCache)(nil)
