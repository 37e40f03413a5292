package tenancy

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/studyarc/platform/internal/access"
)

// MemoryStore is an in-memory tenancy store for demo/development.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	agencies map[string]*Agency
	users    map[string]*User
	emails   map[string]string // lowercased email → user ID
}

// NewMemoryStore creates a new in-memory tenancy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		agencies: make(map[string]*Agency),
		users:    make(map[string]*User),
		emails:   make(map[string]string),
	}
}

func (m *MemoryStore) CreateAccount(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *MemoryStore) GetAccount(_ context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) UpdateAccount(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.ID]; !ok {
		return ErrAccountNotFound
	}
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *MemoryStore) ListAccounts(_ context.Context, limit int) ([]*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CreateAgency(_ context.Context, a *Agency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.AccountID]; !ok {
		return ErrAccountNotFound
	}
	cp := *a
	m.agencies[a.ID] = &cp
	return nil
}

func (m *MemoryStore) GetAgency(_ context.Context, id string) (*Agency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agencies[id]
	if !ok {
		return nil, ErrAgencyNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) UpdateAgency(_ context.Context, a *Agency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agencies[a.ID]; !ok {
		return ErrAgencyNotFound
	}
	cp := *a
	m.agencies[a.ID] = &cp
	return nil
}

func (m *MemoryStore) ListAgencies(_ context.Context, scope access.ScopeFilter, limit int) ([]*Agency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Agency
	for _, a := range m.agencies {
		if scope.AccountID != "" && a.AccountID != scope.AccountID {
			continue
		}
		if scope.AgencyID != "" && a.ID != scope.AgencyID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CountAgencies(_ context.Context, accountID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, a := range m.agencies {
		if a.AccountID == accountID && a.IsActive {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, exists := m.emails[email]; exists {
		return ErrEmailTaken
	}
	cp := *u
	m.users[u.ID] = &cp
	m.emails[email] = u.ID
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) UpdateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrUserNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStore) ListUsers(_ context.Context, scope access.ScopeFilter, limit int) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*User
	for _, u := range m.users {
		if scope.AccountID != "" && u.AccountID != scope.AccountID {
			continue
		}
		if scope.AgencyID != "" && u.AgencyID != scope.AgencyID {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CountUsers(_ context.Context, accountID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, u := range m.users {
		if u.AccountID == accountID && u.IsActive {
			count++
		}
	}
	return count, nil
}
