package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage is a process-local storage guarded by a RWMutex.
// The prerender-options tier uses it unbounded for the duration of a run.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]entry
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]entry)}
}

func (m *MemoryStorage) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := m.Get(ctx, key)
	return ok, err
}

func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if e.expired(time.Now()) {
		m.mu.Lock()
		if cur, ok := m.items[key]; ok && cur.expired(time.Now()) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.Data, true, nil
}

func (m *MemoryStorage) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.items[key] = entry{Data: buf, ExpiresAt: expiry(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryStorage) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.items = make(map[string]entry)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Close() error { return nil }

var (
	_ Storage = (*MemoryStorage)(nil)
	_ Clearer = (*MemoryStorage)(nil)
)
