package billing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/studyarc/platform/internal/access"
	"github.com/studyarc/platform/internal/pagination"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	txns    map[string]*Transaction
	periods map[string]string // "scheduleID/periodIndex" -> transaction ID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txns:    make(map[string]*Transaction),
		periods: make(map[string]string),
	}
}

func periodKey(scheduleID string, periodIndex int) string {
	return fmt.Sprintf("%s/%d", scheduleID, periodIndex)
}

func (m *MemoryStore) Create(_ context.Context, t *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t.ScheduleID != "" {
		key := periodKey(t.ScheduleID, t.PeriodIndex)
		if _, exists := m.periods[key]; exists {
			return ErrDuplicatePeriod
		}
		m.periods[key] = t.ID
	}

	stored := t.Clone()
	stored.UpdateSeq = 1
	m.txns[t.ID] = stored
	t.UpdateSeq = 1
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.txns[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, t *Transaction, expectedSeq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.txns[t.ID]
	if !ok {
		return ErrNotFound
	}
	if current.UpdateSeq != expectedSeq {
		return ErrConflict
	}
	stored := t.Clone()
	stored.UpdateSeq = expectedSeq + 1
	m.txns[t.ID] = stored
	t.UpdateSeq = stored.UpdateSeq
	return nil
}

func (m *MemoryStore) List(_ context.Context, scope access.ScopeFilter, status Status, limit int, after *pagination.Cursor) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Transaction, 0)
	for _, t := range m.txns {
		if !scope.Contains(t.Scope()) {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		if after != nil && !beforeCursor(t.CreatedAt, t.ID, after) {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// beforeCursor reports whether (createdAt, id) sorts strictly after the
// cursor position in the descending (created_at, id) order.
func beforeCursor(createdAt time.Time, id string, cur *pagination.Cursor) bool {
	if createdAt.Before(cur.CreatedAt) {
		return true
	}
	return createdAt.Equal(cur.CreatedAt) && id < cur.ID
}

func (m *MemoryStore) ListBySchedule(_ context.Context, scheduleID string) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Transaction, 0)
	for _, t := range m.txns {
		if t.ScheduleID == scheduleID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodIndex < out[j].PeriodIndex })
	return out, nil
}
