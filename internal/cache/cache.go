// Package cache stores rendered API responses. Keys embed the snapshot
// version, so entries never need explicit invalidation; they just expire.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
}

type entry struct {
	val       []byte
	expiresAt time.Time
}

// Memory is an in-process Cache. Expired entries are dropped lazily on
// access and swept when the map grows past maxEntries.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	now        func() time.Time
}

// NewMemory returns a Memory cache holding at most maxEntries live entries
// (256 if maxEntries <= 0).
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &Memory{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return e.val, true
}

func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= m.maxEntries {
		for k, e := range m.entries {
			if !now.Before(e.expiresAt) {
				delete(m.entries, k)
			}
		}
	}
	if len(m.entries) >= m.maxEntries {
		// still full of live entries: start over
		m.entries = make(map[string]entry)
	}
	m.entries[key] = entry{val: append([]byte(nil), val...), expiresAt: now.Add(ttl)}
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
