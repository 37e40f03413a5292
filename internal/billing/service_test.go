package billing

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
	platformAdmin  = access.Identity{Portal: access.PortalPlatform, Role: access.RoleAdmin}
	accountManager = access.Identity{Portal: access.PortalAccount, Role: access.RoleManager, AccountID: "acc_1"}
	agencyManager  = access.Identity{Portal: access.PortalAgency, Role: access.RoleManager, AccountID: "acc_1", AgencyID: "agc_1"}
	foreignManager = access.Identity{Portal: access.PortalAccount, Role: access.RoleManager, AccountID: "acc_2"}
)

func TestServiceCreateStartsPending(t *testing.T) {
	ctx := context.Background()
	svc := testService(NewMemoryStore())

	tx, err := svc.Create(ctx, accountManager, CreateInput{
		AccountID:   "acc_1",
		Description: "Enrollment commission",
		Amount:      decimal.NewFromInt(500),
		Currency:    "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, tx.Status)
}

func TestServiceDraftCreateThenSubmit(t *testing.T) {
	ctx := context.Background()
	svc := testService(NewMemoryStore())

	tx, err := svc.Create(ctx, accountManager, CreateInput{
		AccountID:   "acc_1",
		Description: "Enrollment commission",
		Amount:      decimal.NewFromInt(500),
		Currency:    "USD",
		Draft:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, tx.Status)

	submitted, err := svc.Apply(ctx, accountManager, tx.ID, ActionSubmit, TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, submitted.Status)

	_, err = svc.Apply(ctx, accountManager, tx.ID, ActionSubmit, TransitionInput{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestServiceClaimApproveReconcileFlow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := testService(store)

	tx := testTxn(StatusPending)
	require.NoError(t, store.Create(ctx, tx))

	claimed, err := svc.Apply(ctx, agencyManager, tx.ID, ActionClaim, TransitionInput{By: "usr_agency"})
	require.NoError(t, err)
	assert.Equal(t, StatusClaimed, claimed.Status)

	approved, err := svc.Apply(ctx, accountManager, tx.ID, ActionApprove, TransitionInput{By: "usr_account"})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)

	reconciled, err := svc.Apply(ctx, accountManager, tx.ID, ActionReconcile, TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, StatusReconciled, reconciled.Status)

	_, err = svc.Apply(ctx, accountManager, tx.ID, ActionCancel, TransitionInput{})
	assert.ErrorIs(t, err, ErrImmutable)
}

func TestServiceProcessIsPlatformOnly(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := testService(store)

	tx := testTxn(StatusPending)
	require.NoError(t, store.Create(ctx, tx))

	_, err := svc.Apply(ctx, accountManager, tx.ID, ActionProcess, TransitionInput{})
	assert.ErrorIs(t, err, access.ErrForbidden)

	processed, err := svc.Apply(ctx, platformAdmin, tx.ID, ActionProcess, TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, processed.Status)
}

func TestServiceScopeBeforeCapability(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := testService(store)

	tx := testTxn(StatusPending)
	require.NoError(t, store.Create(ctx, tx))

	_, err := svc.Apply(ctx, foreignManager, tx.ID, ActionClaim, TransitionInput{By: "usr_x"})
	assert.ErrorIs(t, err, access.ErrOutOfScope)
}

func TestServiceListOverdueFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := testService(store)

	yesterday := testNow.AddDate(0, 0, -1)
	tomorrow := testNow.AddDate(0, 0, 1)

	late := testTxn(StatusPending)
	late.ID = "txn_late"
	late.DueDate = &yesterday
	upcoming := testTxn(StatusPending)
	upcoming.ID = "txn_upcoming"
	upcoming.DueDate = &tomorrow
	settled := testTxn(StatusReconciled)
	settled.ID = "txn_settled"
	settled.DueDate = &yesterday
	for _, tx := range []*Transaction{late, upcoming, settled} {
		require.NoError(t, store.Create(ctx, tx))
	}

	overdue, _, err := svc.List(ctx, accountManager, ListFilter{Overdue: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "txn_late", overdue[0].ID)

	all, _, err := svc.List(ctx, accountManager, ListFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestServiceListCursorWalk(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := testService(store)

	base := testNow.Add(-time.Hour)
	for i := 0; i < 5; i++ {
		tx := testTxn(StatusPending)
		tx.ID = fmt.Sprintf("txn_%02d", i)
		tx.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Create(ctx, tx))
	}

	first, next, err := svc.List(ctx, accountManager, ListFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotEmpty(t, next)
	assert.Equal(t, "txn_04", first[0].ID)
	assert.Equal(t, "txn_03", first[1].ID)

	after, err := pagination.Decode(next)
	require.NoError(t, err)
	second, next2, err := svc.List(ctx, accountManager, ListFilter{Limit: 2, After: after})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "txn_02", second[0].ID)
	assert.Equal(t, "txn_01", second[1].ID)

	after2, err := pagination.Decode(next2)
	require.NoError(t, err)
	last, next3, err := svc.List(ctx, accountManager, ListFilter{Limit: 2, After: after2})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "txn_00", last[0].ID)
	assert.Empty(t, next3)
}

func TestMemoryStoreDuplicatePeriod(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := testTxn(StatusPending)
	first.ID = "txn_1"
	first.ScheduleID = "sch_1"
	first.PeriodIndex = 3
	require.NoError(t, store.Create(ctx, first))

	dup := testTxn(StatusPending)
	dup.ID = "txn_2"
	dup.ScheduleID = "sch_1"
	dup.PeriodIndex = 3
	err := store.Create(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicatePeriod)

	other := testTxn(StatusPending)
	other.ID = "txn_3"
	other.ScheduleID = "sch_1"
	other.PeriodIndex = 4
	require.NoError(t, store.Create(ctx, other))
}

func TestMemoryStoreCASConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	tx := testTxn(StatusPending)
	require.NoError(t, store.Create(ctx, tx))

	first := tx.Clone()
	second := tx.Clone()
	require.NoError(t, store.Update(ctx, first, 1))
	assert.ErrorIs(t, store.Update(ctx, second, 1), ErrConflict)
}

func TestServiceApplyRetriesLostRace(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{MemoryStore: NewMemoryStore(), conflicts: 2}
	svc := testService(store)

	tx := testTxn(StatusPending)
	require.NoError(t, store.Create(ctx, tx))

	claimed, err := svc.Apply(ctx, accountManager, tx.ID, ActionClaim, TransitionInput{By: "usr_1"})
	require.NoError(t, err)
	assert.Equal(t, StatusClaimed, claimed.Status)
}

// racingStore injects CAS conflicts for the first N updates.
type racingStore struct {
	*MemoryStore
	conflicts int
}

func (r *racingStore) Update(ctx context.Context, t *Transaction, expectedSeq int64) error {
	if r.conflicts > 0 {
		r.conflicts--
		return ErrConflict
	}
	return r.MemoryStore.Update(ctx, t, expectedSeq)
}
