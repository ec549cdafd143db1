package cache

import (
	"container/list"
	"sync"
	"time"
)

// boundedEntry is one value with its optional expiry
type boundedEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

func (e *boundedEntry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// boundedMap is a goroutine-safe LRU map with an entry limit and per-entry TTL.
// A background loop drops expired entries until Close is called.
type boundedMap[V any] struct {
	mu         sync.Mutex
	maxEntries int
	order      *list.List
	items      map[string]*list.Element

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// newBoundedMap creates a map holding at most maxEntries values (0 = unbounded).
// cleanupInterval of 0 disables the cleanup loop; expired entries are then
// only dropped on access.
func newBoundedMap[V any](maxEntries int, cleanupInterval time.Duration) *boundedMap[V] {
	m := &boundedMap[V]{
		maxEntries: maxEntries,
		order:      list.New(),
		items:      make(map[string]*list.Element),
		stopChan:   make(chan struct{}),
	}
	if cleanupInterval > 0 {
		m.wg.Add(1)
		go m.cleanupLoop(cleanupInterval)
	}
	return m
}

// get returns the live value for key and marks it recently used
func (m *boundedMap[V]) get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	el, ok := m.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*boundedEntry[V])
	if e.expired(time.Now()) {
		m.removeElement(el)
		return zero, false
	}
	m.order.MoveToFront(el)
	return e.value, true
}

// set stores value for ttl (0 = no expiry), evicting the least recently used
// entry when the map is full
func (m *boundedMap[V]) set(key string, value V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, value, ttl)
}

// setIfAbsent stores value unless a live entry exists. Returns true if stored.
func (m *boundedMap[V]) setIfAbsent(key string, value V, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok && !el.Value.(*boundedEntry[V]).expired(time.Now()) {
		return false
	}
	m.setLocked(key, value, ttl)
	return true
}

func (m *boundedMap[V]) setLocked(key string, value V, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	if el, ok := m.items[key]; ok {
		e := el.Value.(*boundedEntry[V])
		e.value = value
		e.expiresAt = expiresAt
		m.order.MoveToFront(el)
		return
	}

	m.items[key] = m.order.PushFront(&boundedEntry[V]{key: key, value: value, expiresAt: expiresAt})
	for m.maxEntries > 0 && m.order.Len() > m.maxEntries {
		m.removeElement(m.order.Back())
	}
}

func (m *boundedMap[V]) removeElement(el *list.Element) {
	m.order.Remove(el)
	delete(m.items, el.Value.(*boundedEntry[V]).key)
}

// len returns the number of stored entries, expired ones included
func (m *boundedMap[V]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// close stops the cleanup goroutine. Safe to call multiple times.
func (m *boundedMap[V]) close() {
	m.closeOnce.Do(func() {
		close(m.stopChan)
		m.wg.Wait()
	})
}

func (m *boundedMap[V]) cleanupLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

// cleanup removes expired entries
func (m *boundedMap[V]) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for el := m.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*boundedEntry[V]).expired(now) {
			m.removeElement(el)
		}
		el = prev
	}
}
