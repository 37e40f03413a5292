package schedule

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/studyarc/platform/internal/access"
	"github.com/studyarc/platform/internal/pagination"
)

// PostgresStore persists schedules in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed schedule store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const scheduleColumns = `id, account_id, agency_id, offer_letter_id, description, amount, currency,
	cadence, interval_count, start_date, end_date, active, last_run_at, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, s *Schedule) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO payment_schedules (`+scheduleColumns+`)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.ID, s.AccountID, s.AgencyID, s.OfferLetterID, s.Description, s.Amount.String(), s.Currency,
		s.Cadence, s.IntervalCount, s.StartDate, s.EndDate, s.Active, s.LastRunAt, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Schedule, error) {
	return scanSchedule(p.db.QueryRowContext(ctx, `
		SELECT `+scheduleColumns+` FROM payment_schedules WHERE id = $1`, id))
}

func (p *PostgresStore) Update(ctx context.Context, s *Schedule) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE payment_schedules
		SET description = $1, amount = $2, currency = $3, cadence = $4, interval_count = $5,
		    start_date = $6, end_date = $7, active = $8, last_run_at = $9, updated_at = $10
		WHERE id = $11`,
		s.Description, s.Amount.String(), s.Currency, s.Cadence, s.IntervalCount,
		s.StartDate, s.EndDate, s.Active, s.LastRunAt, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, scope access.ScopeFilter, limit int, after *pagination.Cursor) ([]*Schedule, error) {
	cursorTime, cursorID := pagination.CursorArgs(after)
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+scheduleColumns+` FROM payment_schedules
		WHERE ($1 = '' OR account_id = $1)
		  AND ($2 = '' OR agency_id = $2)
		  AND ($3::timestamptz IS NULL OR (created_at, id) < ($3::timestamptz, $4))
		ORDER BY created_at DESC, id DESC
		LIMIT $5`,
		scope.AccountID, scope.AgencyID, cursorTime, cursorID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (p *PostgresStore) ListActive(ctx context.Context, limit int) ([]*Schedule, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+scheduleColumns+` FROM payment_schedules
		WHERE active ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

// ---------- helpers ----------

func collectSchedules(rows *sql.Rows) ([]*Schedule, error) {
	var out []*Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*Schedule, error) {
	var s Schedule
	var agencyID, offerLetterID sql.NullString
	var endDate, lastRunAt sql.NullTime
	var amount string

	err := row.Scan(
		&s.ID, &s.AccountID, &agencyID, &offerLetterID, &s.Description, &amount, &s.Currency,
		&s.Cadence, &s.IntervalCount, &s.StartDate, &endDate, &s.Active, &lastRunAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.AgencyID = agencyID.String
	s.OfferLetterID = offerLetterID.String
	if endDate.Valid {
		s.EndDate = &endDate.Time
	}
	if lastRunAt.Valid {
		s.LastRunAt = &lastRunAt.Time
	}
	if s.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &s, nil
}
