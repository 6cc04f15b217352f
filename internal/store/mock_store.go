// ABOUTME: In-memory ConfigStore implementation for testing
// ABOUTME: Allows tests to run without files or SQLite and to inject save failures

package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryConfigStore is an in-memory ConfigStore for testing.
type MemoryConfigStore struct {
	mu      sync.RWMutex
	docs    map[string][]byte
	saves   int
	SaveErr error // returned by Save when set
}

// NewMemoryConfigStore creates an empty MemoryConfigStore.
func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{
		docs: make(map[string][]byte),
	}
}

// Load returns a copy of the stored document.
func (m *MemoryConfigStore) Load(ctx context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.docs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

// Save stores a copy of data unless SaveErr is set.
func (m *MemoryConfigStore) Save(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.docs[name] = slices.Clone(data)
	m.saves++
	return nil
}

// Put seeds a raw document, bypassing SaveErr.
func (m *MemoryConfigStore) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = slices.Clone(data)
}

// Saves returns how many successful saves happened.
func (m *MemoryConfigStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Close is a no-op.
func (m *MemoryConfigStore) Close() error {
	return nil
}
