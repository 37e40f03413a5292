//go:build integration

package billing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyarc/platform/internal/idgen"
	"github.com/studyarc/platform/internal/testutil"
)

func setupPostgres(t *testing.T) (*PostgresStore, string) {
	t.Helper()

	db := testutil.PG(t)
	ctx := context.Background()

	// Mirrors migrations 00001/00004, minus agency/offer-letter FKs so the
	// test is self-contained against a bare database.
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			contact_email TEXT NOT NULL,
			contact_phone TEXT NOT NULL DEFAULT '',
			subscription  JSONB NOT NULL,
			billing       JSONB NOT NULL,
			settings      JSONB NOT NULL,
			is_active     BOOLEAN NOT NULL DEFAULT TRUE,
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS billing_transactions (
			id               TEXT PRIMARY KEY,
			account_id       TEXT NOT NULL,
			agency_id        TEXT,
			offer_letter_id  TEXT,
			schedule_id      TEXT,
			period_index     INTEGER NOT NULL DEFAULT 0,
			description      TEXT NOT NULL DEFAULT '',
			amount           NUMERIC(14, 2) NOT NULL,
			currency         TEXT NOT NULL,
			status           TEXT NOT NULL,
			due_date         TIMESTAMPTZ,
			claimed_by       TEXT NOT NULL DEFAULT '',
			approved_by      TEXT NOT NULL DEFAULT '',
			dispute_reason   TEXT NOT NULL DEFAULT '',
			resolution_notes TEXT NOT NULL DEFAULT '',
			reconciled_at    TIMESTAMPTZ,
			update_seq       BIGINT NOT NULL DEFAULT 1,
			created_at       TIMESTAMPTZ NOT NULL,
			updated_at       TIMESTAMPTZ NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_billing_txns_schedule_period
			ON billing_transactions(schedule_id, period_index)
			WHERE schedule_id IS NOT NULL;
	`)
	require.NoError(t, err)

	// Shared database: every test uses its own generated account ID. The
	// stub row satisfies the account FK when the real migrations are applied.
	accountID := idgen.WithPrefix("acc_")
	_, err = db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, contact_email, subscription, billing, settings, created_at, updated_at)
		VALUES ($1, 'Test Account', 'test@example.com', '{}', '{}', '{}', NOW(), NOW())
		ON CONFLICT (id) DO NOTHING`, accountID)
	require.NoError(t, err)

	return NewPostgresStore(db), accountID
}

func testTransaction(accountID string) *Transaction {
	now := time.Now().UTC().Truncate(time.Millisecond)
	due := now.AddDate(0, 1, 0)
	return &Transaction{
		ID:          idgen.WithPrefix("btx_"),
		AccountID:   accountID,
		Description: "Tuition installment",
		Amount:      decimal.RequireFromString("2500.00"),
		Currency:    "USD",
		Status:      StatusPending,
		DueDate:     &due,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPostgresCreateGetRoundtrip(t *testing.T) {
	store, accountID := setupPostgres(t)
	ctx := context.Background()

	txn := testTransaction(accountID)
	require.NoError(t, store.Create(ctx, txn))
	assert.Equal(t, int64(1), txn.UpdateSeq)

	got, err := store.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)
	assert.Equal(t, accountID, got.AccountID)
	assert.Equal(t, StatusPending, got.Status)
	assert.True(t, txn.Amount.Equal(got.Amount))
	require.NotNil(t, got.DueDate)
	assert.WithinDuration(t, *txn.DueDate, *got.DueDate, time.Second)
}

func TestPostgresGetNotFound(t *testing.T) {
	store, _ := setupPostgres(t)

	_, err := store.Get(context.Background(), "btx_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresUpdateStaleSeqConflicts(t *testing.T) {
	store, accountID := setupPostgres(t)
	ctx := context.Background()

	txn := testTransaction(accountID)
	require.NoError(t, store.Create(ctx, txn))

	txn.Status = StatusClaimed
	txn.ClaimedBy = "usr_1"
	require.NoError(t, store.Update(ctx, txn, 1))
	assert.Equal(t, int64(2), txn.UpdateSeq)

	// A writer holding the old snapshot loses the race.
	stale := testTransaction(accountID)
	stale.ID = txn.ID
	stale.Status = StatusCancelled
	assert.ErrorIs(t, store.Update(ctx, stale, 1), ErrConflict)

	got, err := store.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClaimed, got.Status)
	assert.Equal(t, "usr_1", got.ClaimedBy)
}

func TestPostgresDuplicateSchedulePeriod(t *testing.T) {
	store, accountID := setupPostgres(t)
	ctx := context.Background()

	scheduleID := idgen.WithPrefix("sch_")

	first := testTransaction(accountID)
	first.ScheduleID = scheduleID
	first.PeriodIndex = 3
	require.NoError(t, store.Create(ctx, first))

	dup := testTransaction(accountID)
	dup.ScheduleID = scheduleID
	dup.PeriodIndex = 3
	assert.ErrorIs(t, store.Create(ctx, dup), ErrDuplicatePeriod)

	// Manual transactions carry no schedule and never collide.
	manual := testTransaction(accountID)
	manual.PeriodIndex = 3
	assert.NoError(t, store.Create(ctx, manual))
}

func TestPostgresListBySchedule(t *testing.T) {
	store, accountID := setupPostgres(t)
	ctx := context.Background()

	scheduleID := idgen.WithPrefix("sch_")
	for _, idx := range []int{2, 0, 1} {
		txn := testTransaction(accountID)
		txn.ScheduleID = scheduleID
		txn.PeriodIndex = idx
		require.NoError(t, store.Create(ctx, txn))
	}

	got, err := store.ListBySchedule(ctx, scheduleID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, txn := range got {
		assert.Equal(t, i, txn.PeriodIndex)
	}
}
