package auth

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory API key store for demo/development.
type MemoryStore struct {
	mu     sync.RWMutex
	keys   map[string]*APIKey // by ID
	hashes map[string]string  // hash → ID
}

// NewMemoryStore creates a new in-memory key store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys:   make(map[string]*APIKey),
		hashes: make(map[string]string),
	}
}

func (m *MemoryStore) Create(_ context.Context, key *APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *key
	m.keys[key.ID] = &cp
	m.hashes[key.Hash] = key.ID
	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[id]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *key
	return &cp, nil
}

func (m *MemoryStore) GetByHash(_ context.Context, hash string) (*APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.hashes[hash]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *m.keys[id]
	return &cp, nil
}

func (m *MemoryStore) ListByAccount(_ context.Context, accountID string) ([]*APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*APIKey
	for _, key := range m.keys {
		if key.Identity.AccountID == accountID {
			cp := *key
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, key *APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key.ID]; !ok {
		return ErrKeyNotFound
	}
	cp := *key
	m.keys[key.ID] = &cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[id]
	if !ok {
		return ErrKeyNotFound
	}
	delete(m.hashes, key.Hash)
	delete(m.keys, id)
	return nil
}
