package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Options selects and sizes the caches built by Factory
type Options struct {
	// DesignMaxEntries bounds the local design cache
	DesignMaxEntries int
	// DesignTTL expires design lookups; 0 keeps them until evicted
	DesignTTL time.Duration
	// DeliveryMaxEntries bounds the local webhook delivery log
	DeliveryMaxEntries int
}

// Factory builds the design cache and the webhook delivery log.
// With a Redis client they are shared across instances; without one they are
// process-local.
type Factory struct {
	redis   *redis.Client
	prefix  string
	options Options
	logger  *zap.Logger
}

// NewFactory creates a cache factory. redisClient may be nil.
func NewFactory(redisClient *redis.Client, keyPrefix string, opts Options, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keyPrefix == "" {
		keyPrefix = "bridge:"
	}
	return &Factory{redis: redisClient, prefix: keyPrefix, options: opts, logger: logger}
}

// DesignStore returns the design cache: L1 only, or L1 + Redis
func (f *Factory) DesignStore() DesignStore {
	l1 := NewInMemoryDesignCache(f.options.DesignMaxEntries, f.options.DesignTTL)
	if f.redis == nil {
		f.logger.Info("Using in-memory design cache",
			zap.Int("max_entries", f.options.DesignMaxEntries),
			zap.Duration("ttl", f.options.DesignTTL),
		)
		return l1
	}
	f.logger.Info("Using tiered design cache (memory + Redis)")
	l2 := NewRedisDesignCache(f.redis, f.prefix+"design:", f.options.DesignTTL)
	return NewTieredDesignCache(l1, l2, f.logger)
}

// IdempotencyStore returns the webhook delivery log
func (f *Factory) IdempotencyStore() fulfillment.IdempotencyStore {
	if f.redis == nil {
		f.logger.Warn("Using in-memory webhook delivery log; " +
			"duplicate deliveries to other instances are not detected")
		return NewInMemoryIdempotencyStore(f.options.DeliveryMaxEntries)
	}
	return NewRedisIdempotencyStore(f.redis, f.prefix+"webhook:")
}

// ConnectRedis opens and pings a Redis client
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
