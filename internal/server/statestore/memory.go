package statestore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memory is an in-process Store backed by a map. Expiry is lazy: reads
// treat stale entries as absent, and SweepExpired reclaims them in bulk.
type Memory[V any] struct {
	mu      sync.Mutex
	entries map[string]memoryEntry[V]
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{
		entries: make(map[string]memoryEntry[V]),
		now:     time.Now,
	}
}

func (m *Memory[V]) Put(_ context.Context, key string, value V, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry[V]{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

// TakeOnce deletes under the same lock as the lookup, so of N callers
// racing on one key exactly one observes the value.
func (m *Memory[V]) TakeOnce(_ context.Context, key string) (V, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	entry, ok := m.entries[key]
	if !ok {
		return zero, false, nil
	}
	delete(m.entries, key)

	if m.now().After(entry.expiresAt) {
		return zero, false, nil
	}
	return entry.value, true, nil
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	entry, ok := m.entries[key]
	if !ok {
		return zero, false, nil
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		return zero, false, nil
	}
	return entry.value, true, nil
}

func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory[V]) SweepExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	dropped := 0
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
			dropped++
		}
	}
	return dropped, nil
}

// Len reports the number of live-or-stale entries, for tests and metrics.
func (m *Memory[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
