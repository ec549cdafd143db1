package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// negativeValue marks a cached miss
var negativeValue = []byte("null")

// RedisDesignCache shares design lookups across instances
type RedisDesignCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisDesignCache creates a Redis design cache. A ttl of 0 stores keys without expiry.
func NewRedisDesignCache(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisDesignCache {
	if keyPrefix == "" {
		keyPrefix = "bridge:design:"
	}
	return &RedisDesignCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Get returns the cached lookup for key
func (c *RedisDesignCache) Get(ctx context.Context, key string) (*fulfillment.DesignSet, bool, error) {
	raw, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read design cache: %w", err)
	}
	if bytes.Equal(raw, negativeValue) {
		return nil, true, nil
	}

	var set fulfillment.DesignSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached design: %w", err)
	}
	return &set, true, nil
}

// Set stores a lookup result; nil records a miss
func (c *RedisDesignCache) Set(ctx context.Context, key string, set *fulfillment.DesignSet) error {
	raw := negativeValue
	if set != nil {
		b, err := json.Marshal(set)
		if err != nil {
			return fmt.Errorf("failed to encode design: %w", err)
		}
		raw = b
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write design cache: %w", err)
	}
	return nil
}

var _ DesignStore = (*RedisDesignCache)(nil)
