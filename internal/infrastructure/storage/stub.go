package storage

import (
	"context"
	"sync"
)

// MemoryObjectStore keeps objects in process memory. It backs the image
// cache when no bucket is configured, and tests.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// NewMemoryObjectStore creates an empty store
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: make(map[string]Object)}
}

// Ensure MemoryObjectStore implements ObjectStore
var _ ObjectStore = (*MemoryObjectStore)(nil)

// Get returns a copy of the stored object, or nil if absent
func (s *MemoryObjectStore) Get(ctx context.Context, key string) (*Object, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, nil
	}
	return &Object{Data: append([]byte(nil), obj.Data...), ContentType: obj.ContentType}, nil
}

// Put stores a copy of obj
func (s *MemoryObjectStore) Put(ctx context.Context, key string, obj *Object) error {
	if key == "" {
		return ErrKeyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{Data: append([]byte(nil), obj.Data...), ContentType: obj.ContentType}
	return nil
}

// Len returns the number of stored objects
func (s *MemoryObjectStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
