package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/studyarc/platform/internal/access"
	"github.com/studyarc/platform/internal/pagination"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	schedules map[string]*Schedule
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{schedules: make(map[string]*Schedule)}
}

func (m *MemoryStore) Create(_ context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[s.ID]; !ok {
		return ErrNotFound
	}
	m.schedules[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) List(_ context.Context, scope access.ScopeFilter, limit int, after *pagination.Cursor) ([]*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Schedule, 0)
	for _, s := range m.schedules {
		if !scope.Contains(s.Scope()) {
			continue
		}
		if after != nil && !beforeCursor(s.CreatedAt, s.ID, after) {
			continue
		}
		out = append(out, s.Clone())
	}
	sortSchedules(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListActive(_ context.Context, limit int) ([]*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Schedule, 0)
	for _, s := range m.schedules {
		if s.Active {
			out = append(out, s.Clone())
		}
	}
	sortSchedules(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortSchedules(out []*Schedule) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
}

// beforeCursor reports whether (createdAt, id) sorts strictly after the
// cursor position in the descending (created_at, id) order.
func beforeCursor(createdAt time.Time, id string, cur *pagination.Cursor) bool {
	if createdAt.Before(cur.CreatedAt) {
		return true
	}
	return createdAt.Equal(cur.CreatedAt) && id < cur.ID
}
