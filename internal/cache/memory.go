package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryProvider is the single-replica fallback used when Redis is
// disabled or unreachable. Same contract, process-local only.
type MemoryProvider struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	counters map[string]int64
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		entries:  make(map[string]memoryEntry),
		counters: make(map[string]int64),
	}
}

func (m *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		delete(m.entries, key)
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

func (m *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expires = time.Now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

func (m *MemoryProvider) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[key]++
	return m.counters[key], nil
}

func (m *MemoryProvider) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	delete(m.counters, key)
	return nil
}

func (m *MemoryProvider) Ping(context.Context) error { return nil }

func (m *MemoryProvider) Close() error { return nil }
