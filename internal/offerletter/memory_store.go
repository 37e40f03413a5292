package offerletter

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
	mu      sync.RWMutex
	letters map[string]*OfferLetter
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{letters: make(map[string]*OfferLetter)}
}

func (m *MemoryStore) Create(_ context.Context, o *OfferLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := o.Clone()
	stored.UpdateSeq = 1
	m.letters[o.ID] = stored
	o.UpdateSeq = 1
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*OfferLetter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.letters[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, o *OfferLetter, expectedSeq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.letters[o.ID]
	if !ok {
		return ErrNotFound
	}
	if current.UpdateSeq != expectedSeq {
		return ErrConflict
	}
	stored := o.Clone()
	stored.UpdateSeq = expectedSeq + 1
	m.letters[o.ID] = stored
	o.UpdateSeq = stored.UpdateSeq
	return nil
}

func (m *MemoryStore) Replace(_ context.Context, pred *OfferLetter, expectedSeq int64, succ *OfferLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.letters[pred.ID]
	if !ok {
		return ErrNotFound
	}
	if current.UpdateSeq != expectedSeq {
		return ErrConflict
	}

	frozen := pred.Clone()
	frozen.UpdateSeq = expectedSeq + 1
	created := succ.Clone()
	created.UpdateSeq = 1

	m.letters[pred.ID] = frozen
	m.letters[succ.ID] = created
	pred.UpdateSeq = frozen.UpdateSeq
	succ.UpdateSeq = 1
	return nil
}

func (m *MemoryStore) List(_ context.Context, scope access.ScopeFilter, status Status, limit int, after *pagination.Cursor) ([]*OfferLetter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*OfferLetter, 0)
	for _, o := range m.letters {
		if !scope.Contains(o.Scope()) {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		if after != nil && !beforeCursor(o.CreatedAt, o.ID, after) {
			continue
		}
		out = append(out, o.Clone())
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
