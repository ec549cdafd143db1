package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// DesignStore caches design plugin lookups by "<shop>:<session>".
// A stored nil set is a cached miss.
type DesignStore interface {
	Get(ctx context.Context, key string) (set *fulfillment.DesignSet, found bool, err error)
	Set(ctx context.Context, key string, set *fulfillment.DesignSet) error
}

// InMemoryDesignCache is a bounded LRU design cache local to the process.
// A design session never changes once created, so the TTL only limits memory.
type InMemoryDesignCache struct {
	entries *boundedMap[*fulfillment.DesignSet]
	ttl     time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewInMemoryDesignCache creates a cache holding at most maxEntries sessions.
// A ttl of 0 keeps entries until they are evicted.
func NewInMemoryDesignCache(maxEntries int, ttl time.Duration) *InMemoryDesignCache {
	var interval time.Duration
	if ttl > 0 {
		interval = min(ttl, 5*time.Minute)
	}
	return &InMemoryDesignCache{
		entries: newBoundedMap[*fulfillment.DesignSet](maxEntries, interval),
		ttl:     ttl,
	}
}

// Get returns the cached lookup for key
func (c *InMemoryDesignCache) Get(ctx context.Context, key string) (*fulfillment.DesignSet, bool, error) {
	set, ok := c.entries.get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}
	c.hits.Add(1)
	return set, true, nil
}

// Set stores a lookup result; nil records a miss
func (c *InMemoryDesignCache) Set(ctx context.Context, key string, set *fulfillment.DesignSet) error {
	c.entries.set(key, set, c.ttl)
	return nil
}

// Len returns the number of cached sessions
func (c *InMemoryDesignCache) Len() int {
	return c.entries.len()
}

// Stats returns hit and miss counts
func (c *InMemoryDesignCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Close stops the cleanup goroutine
func (c *InMemoryDesignCache) Close() error {
	c.entries.close()
	return nil
}

var _ DesignStore = (*InMemoryDesignCache)(nil)
