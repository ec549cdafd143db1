package cache

import (
	"context"
	"time"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// InMemoryIdempotencyStore records handled webhook deliveries in process memory.
// This is suitable for single-instance deployments and testing.
type InMemoryIdempotencyStore struct {
	entries *boundedMap[struct{}]
}

// NewInMemoryIdempotencyStore creates a store holding at most maxEntries ids.
// It starts a background goroutine to clean up expired entries.
func NewInMemoryIdempotencyStore(maxEntries int) *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{
		entries: newBoundedMap[struct{}](maxEntries, 5*time.Minute),
	}
}

// MarkProcessed records id with a TTL.
// Returns true if id was newly recorded, false if it was already processed.
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return s.entries.setIfAbsent(id, struct{}{}, ttl), nil
}

// IsProcessed checks if id has already been processed
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, id string) (bool, error) {
	_, ok := s.entries.get(id)
	return ok, nil
}

// Size returns the number of entries in the store
func (s *InMemoryIdempotencyStore) Size() int {
	return s.entries.len()
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.entries.close()
	return nil
}

var _ fulfillment.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
