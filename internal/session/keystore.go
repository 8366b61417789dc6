package session

import (
	"context"
	"sync"
)

// MemoryKeyStore keeps the key in process memory. Used by tests and by
// commands that must not touch the state file.
type MemoryKeyStore struct {
	mu  sync.Mutex
	key string
}

// NewMemoryKeyStore creates a store holding key.
func NewMemoryKeyStore(key string) *MemoryKeyStore {
	return &MemoryKeyStore{key: key}
}

func (m *MemoryKeyStore) LoadKey(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key, nil
}

func (m *MemoryKeyStore) SaveKey(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
	return nil
}

func (m *MemoryKeyStore) ClearKey(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = ""
	return nil
}
