package offerletter

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyarc/platform/internal/access"
	"github.com/studyarc/platform/internal/pagination"
)

func testService(store Store) *Service {
	svc := NewService(store, nil, slog.Default())
	svc.now = func() time.Time { return testNow }
	return svc
}

var (
	accountManager = access.Identity{Portal: access.PortalAccount, Role: access.RoleManager, AccountID: "acc_1"}
	accountViewer  = access.Identity{Portal: access.PortalAccount, Role: access.RoleUser, AccountID: "acc_1"}
	foreignManager = access.Identity{Portal: access.PortalAccount, Role: access.RoleManager, AccountID: "acc_2"}
)

func TestServiceCreateAndIssue(t *testing.T) {
	ctx := context.Background()
	svc := testService(NewMemoryStore())

	expiry := testNow.AddDate(0, 1, 0)
	o, err := svc.Create(ctx, accountManager, CreateInput{
		AccountID:     "acc_1",
		StudentName:   "Jordan Lee",
		ProgramName:   "MSc Data Science",
		TuitionAmount: decimal.NewFromInt(24000),
		Currency:      "USD",
		ExpiryDate:    &expiry,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, o.Status)
	assert.Equal(t, 1, o.Version)

	issued, err := svc.Apply(ctx, accountManager, o.ID, ActionIssue)
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, issued.Status)
}

func TestServiceCreateDeniedOutOfScope(t *testing.T) {
	ctx := context.Background()
	svc := testService(NewMemoryStore())

	_, err := svc.Create(ctx, foreignManager, CreateInput{
		AccountID:     "acc_1",
		StudentName:   "Jordan Lee",
		ProgramName:   "MSc Data Science",
		TuitionAmount: decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, access.ErrOutOfScope)
}

func TestServiceViewerCannotTransition(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := testService(store)

	o := testLetter(StatusDraft)
	require.NoError(t, store.Create(ctx, o))

	_, err := svc.Apply(ctx, accountViewer, o.ID, ActionIssue)
	assert.ErrorIs(t, err, access.ErrForbidden)
}

func TestServiceForeignCallerSeesNotFoundShape(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := testService(store)

	o := testLetter(StatusIssued)
	require.NoError(t, store.Create(ctx, o))

	_, err := svc.Get(ctx, foreignManager, o.ID)
	assert.ErrorIs(t, err, access.ErrOutOfScope)
}

func TestServiceGetAppliesLazyExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := testService(store)

	o := testLetter(StatusIssued)
	past := testNow.AddDate(0, 0, -1)
	o.ExpiryDate = &past
	require.NoError(t, store.Create(ctx, o))

	got, err := svc.Get(ctx, accountManager, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)

	// The stored record was not written.
	raw, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, raw.Status)
}

func TestServiceReplaceCreatesSuccessor(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := testService(store)

	o := testLetter(StatusIssued)
	require.NoError(t, store.Create(ctx, o))

	newAmount := decimal.NewFromInt(26000)
	succ, err := svc.Replace(ctx, accountManager, o.ID, ReplaceInput{TuitionAmount: &newAmount})
	require.NoError(t, err)
	assert.Equal(t, 2, succ.Version)
	assert.Equal(t, StatusIssued, succ.Status)
	assert.True(t, succ.TuitionAmount.Equal(newAmount))

	pred, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReplaced, pred.Status)
	assert.Equal(t, succ.ID, pred.ReplacedByID)

	// The frozen predecessor takes no further transitions.
	_, err = svc.Apply(ctx, accountManager, o.ID, ActionCancel)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMemoryStoreCASConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	o := testLetter(StatusDraft)
	require.NoError(t, store.Create(ctx, o))
	require.EqualValues(t, 1, o.UpdateSeq)

	first := o.Clone()
	second := o.Clone()

	require.NoError(t, store.Update(ctx, first, 1))
	err := store.Update(ctx, second, 1)
	assert.ErrorIs(t, err, ErrConflict, "stale writer must lose")
}

func TestServiceApplyRetriesLostRace(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{MemoryStore: NewMemoryStore(), conflicts: 2}
	svc := testService(store)

	o := testLetter(StatusDraft)
	require.NoError(t, store.Create(ctx, o))

	issued, err := svc.Apply(ctx, accountManager, o.ID, ActionIssue)
	require.NoError(t, err, "bounded retry must absorb transient conflicts")
	assert.Equal(t, StatusIssued, issued.Status)
	assert.Equal(t, 0, store.conflicts)
}

func TestServiceApplyGivesUpAfterRetries(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{MemoryStore: NewMemoryStore(), conflicts: casRetries + 1}
	svc := testService(store)

	o := testLetter(StatusDraft)
	require.NoError(t, store.Create(ctx, o))

	_, err := svc.Apply(ctx, accountManager, o.ID, ActionIssue)
	assert.ErrorIs(t, err, ErrConflict)
}

// racingStore injects CAS conflicts for the first N updates.
type racingStore struct {
	*MemoryStore
	conflicts int
}

func (r *racingStore) Update(ctx context.Context, o *OfferLetter, expectedSeq int64) error {
	if r.conflicts > 0 {
		r.conflicts--
		return ErrConflict
	}
	return r.MemoryStore.Update(ctx, o, expectedSeq)
}

func TestMemoryStoreListScoped(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a := testLetter(StatusIssued)
	a.ID = "ofl_a"
	b := testLetter(StatusDraft)
	b.ID = "ofl_b"
	b.AgencyID = "agc_2"
	c := testLetter(StatusIssued)
	c.ID = "ofl_c"
	c.AccountID = "acc_2"
	c.AgencyID = ""
	for _, o := range []*OfferLetter{a, b, c} {
		require.NoError(t, store.Create(ctx, o))
	}

	account1, err := store.List(ctx, access.ScopeFilter{AccountID: "acc_1"}, "", 10, nil)
	require.NoError(t, err)
	assert.Len(t, account1, 2)

	agency1, err := store.List(ctx, access.ScopeFilter{AccountID: "acc_1", AgencyID: "agc_1"}, "", 10, nil)
	require.NoError(t, err)
	require.Len(t, agency1, 1)
	assert.Equal(t, "ofl_a", agency1[0].ID)

	issuedOnly, err := store.List(ctx, access.ScopeFilter{}, StatusIssued, 10, nil)
	require.NoError(t, err)
	assert.Len(t, issuedOnly, 2)
}

func TestServiceListCursorWalk(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := testService(store)

	base := testNow.Add(-time.Hour)
	for i := 0; i < 5; i++ {
		o := testLetter(StatusDraft)
		o.ID = fmt.Sprintf("ofl_%02d", i)
		o.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Create(ctx, o))
	}

	seen := make(map[string]bool)
	var pages int
	cursor := ""
	for {
		after, err := pagination.Decode(cursor)
		require.NoError(t, err)
		page, next, err := svc.List(ctx, accountManager, access.ScopeFilter{}, "", 2, after)
		require.NoError(t, err)
		pages++
		for _, o := range page {
			assert.False(t, seen[o.ID], "letter %s returned twice", o.ID)
			seen[o.ID] = true
		}
		if next == "" {
			break
		}
		cursor = next
	}
	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 5)
}
