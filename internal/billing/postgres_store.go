package billing

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/studyarc/platform/internal/access"
	"github.com/studyarc/platform/internal/pagination"
)

// PostgresStore persists billing transactions in PostgreSQL. A unique index
// on (schedule_id, period_index) backs the generator's idempotency, and
// update_seq carries the compare-and-swap sequence.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed billing store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const txnColumns = `id, account_id, agency_id, offer_letter_id, schedule_id, period_index, description,
	amount, currency, status, due_date, claimed_by, approved_by, dispute_reason, resolution_notes,
	reconciled_at, update_seq, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, t *Transaction) error {
	var scheduleID any
	if t.ScheduleID != "" {
		scheduleID = t.ScheduleID
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO billing_transactions (`+txnColumns+`)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1, $17, $18)`,
		t.ID, t.AccountID, t.AgencyID, t.OfferLetterID, scheduleID, t.PeriodIndex, t.Description,
		t.Amount.String(), t.Currency, t.Status, t.DueDate, t.ClaimedBy, t.ApprovedBy,
		t.DisputeReason, t.ResolutionNotes, t.ReconciledAt, t.CreatedAt, t.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicatePeriod
	}
	if err == nil {
		t.UpdateSeq = 1
	}
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Transaction, error) {
	return scanTransaction(p.db.QueryRowContext(ctx, `
		SELECT `+txnColumns+` FROM billing_transactions WHERE id = $1`, id))
}

func (p *PostgresStore) Update(ctx context.Context, t *Transaction, expectedSeq int64) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE billing_transactions
		SET description = $1, amount = $2, currency = $3, status = $4, due_date = $5,
		    claimed_by = $6, approved_by = $7, dispute_reason = $8, resolution_notes = $9,
		    reconciled_at = $10, update_seq = update_seq + 1, updated_at = $11
		WHERE id = $12 AND update_seq = $13`,
		t.Description, t.Amount.String(), t.Currency, t.Status, t.DueDate,
		t.ClaimedBy, t.ApprovedBy, t.DisputeReason, t.ResolutionNotes,
		t.ReconciledAt, t.UpdatedAt, t.ID, expectedSeq,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM billing_transactions WHERE id = $1)`, t.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}
		return ErrNotFound
	}
	t.UpdateSeq = expectedSeq + 1
	return nil
}

func (p *PostgresStore) List(ctx context.Context, scope access.ScopeFilter, status Status, limit int, after *pagination.Cursor) ([]*Transaction, error) {
	cursorTime, cursorID := pagination.CursorArgs(after)
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+txnColumns+` FROM billing_transactions
		WHERE ($1 = '' OR account_id = $1)
		  AND ($2 = '' OR agency_id = $2)
		  AND ($3 = '' OR status = $3)
		  AND ($4::timestamptz IS NULL OR (created_at, id) < ($4::timestamptz, $5))
		ORDER BY created_at DESC, id DESC
		LIMIT $6`,
		scope.AccountID, scope.AgencyID, string(status), cursorTime, cursorID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (p *PostgresStore) ListBySchedule(ctx context.Context, scheduleID string) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+txnColumns+` FROM billing_transactions
		WHERE schedule_id = $1
		ORDER BY period_index ASC`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ---------- helpers ----------

func collectTransactions(rows *sql.Rows) ([]*Transaction, error) {
	var out []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var t Transaction
	var agencyID, offerLetterID, scheduleID, claimedBy, approvedBy, disputeReason, resolutionNotes sql.NullString
	var dueDate, reconciledAt sql.NullTime
	var periodIndex sql.NullInt64
	var amount string

	err := row.Scan(
		&t.ID, &t.AccountID, &agencyID, &offerLetterID, &scheduleID, &periodIndex, &t.Description,
		&amount, &t.Currency, &t.Status, &dueDate, &claimedBy, &approvedBy, &disputeReason,
		&resolutionNotes, &reconciledAt, &t.UpdateSeq, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	t.AgencyID = agencyID.String
	t.OfferLetterID = offerLetterID.String
	t.ScheduleID = scheduleID.String
	t.PeriodIndex = int(periodIndex.Int64)
	t.ClaimedBy = claimedBy.String
	t.ApprovedBy = approvedBy.String
	t.DisputeReason = disputeReason.String
	t.ResolutionNotes = resolutionNotes.String
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if reconciledAt.Valid {
		t.ReconciledAt = &reconciledAt.Time
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &t, nil
}
