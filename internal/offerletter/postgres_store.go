package offerletter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/studyarc/platform/internal/access"
	"github.com/studyarc/platform/internal/pagination"
)

// PostgresStore persists offer letters in PostgreSQL. The update_seq column
// carries the compare-and-swap sequence; every successful write increments it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed offer letter store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const letterColumns = `id, account_id, agency_id, student_id, student_name, program_name, institution_name,
	tuition_amount, currency, status, version, issue_date, expiry_date, documents, lifecycle,
	replaces_id, replaced_by_id, update_seq, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, o *OfferLetter) error {
	docsJSON, lcJSON, err := marshalLetterJSON(o)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO offer_letters (`+letterColumns+`)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NULLIF($16, ''), NULLIF($17, ''), 1, $18, $19)`,
		o.ID, o.AccountID, o.AgencyID, o.StudentID, o.StudentName, o.ProgramName, o.InstitutionName,
		o.TuitionAmount.String(), o.Currency, o.Status, o.Version, o.IssueDate, o.ExpiryDate,
		docsJSON, lcJSON, o.ReplacesID, o.ReplacedByID, o.CreatedAt, o.UpdatedAt,
	)
	if err == nil {
		o.UpdateSeq = 1
	}
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*OfferLetter, error) {
	return scanLetter(p.db.QueryRowContext(ctx, `
		SELECT `+letterColumns+` FROM offer_letters WHERE id = $1`, id))
}

func (p *PostgresStore) Update(ctx context.Context, o *OfferLetter, expectedSeq int64) error {
	docsJSON, lcJSON, err := marshalLetterJSON(o)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE offer_letters
		SET student_name = $1, program_name = $2, institution_name = $3, tuition_amount = $4,
		    currency = $5, status = $6, version = $7, issue_date = $8, expiry_date = $9,
		    documents = $10, lifecycle = $11, replaced_by_id = NULLIF($12, ''),
		    update_seq = update_seq + 1, updated_at = $13
		WHERE id = $14 AND update_seq = $15`,
		o.StudentName, o.ProgramName, o.InstitutionName, o.TuitionAmount.String(),
		o.Currency, o.Status, o.Version, o.IssueDate, o.ExpiryDate,
		docsJSON, lcJSON, o.ReplacedByID, o.UpdatedAt, o.ID, expectedSeq,
	)
	if err != nil {
		return err
	}
	if err := casOutcome(ctx, p.db, res, o.ID); err != nil {
		return err
	}
	o.UpdateSeq = expectedSeq + 1
	return nil
}

func (p *PostgresStore) Replace(ctx context.Context, pred *OfferLetter, expectedSeq int64, succ *OfferLetter) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	predDocs, predLC, err := marshalLetterJSON(pred)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE offer_letters
		SET status = $1, replaced_by_id = $2, lifecycle = $3, update_seq = update_seq + 1, updated_at = $4, documents = $5
		WHERE id = $6 AND update_seq = $7`,
		pred.Status, pred.ReplacedByID, predLC, pred.UpdatedAt, predDocs, pred.ID, expectedSeq,
	)
	if err != nil {
		return err
	}
	if err := casOutcome(ctx, tx, res, pred.ID); err != nil {
		return err
	}

	succDocs, succLC, err := marshalLetterJSON(succ)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO offer_letters (`+letterColumns+`)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NULLIF($16, ''), NULLIF($17, ''), 1, $18, $19)`,
		succ.ID, succ.AccountID, succ.AgencyID, succ.StudentID, succ.StudentName, succ.ProgramName, succ.InstitutionName,
		succ.TuitionAmount.String(), succ.Currency, succ.Status, succ.Version, succ.IssueDate, succ.ExpiryDate,
		succDocs, succLC, succ.ReplacesID, succ.ReplacedByID, succ.CreatedAt, succ.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	pred.UpdateSeq = expectedSeq + 1
	succ.UpdateSeq = 1
	return nil
}

func (p *PostgresStore) List(ctx context.Context, scope access.ScopeFilter, status Status, limit int, after *pagination.Cursor) ([]*OfferLetter, error) {
	cursorTime, cursorID := pagination.CursorArgs(after)
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+letterColumns+` FROM offer_letters
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

	var out []*OfferLetter
	for rows.Next() {
		o, err := scanLetter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ---------- helpers ----------

type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// casOutcome distinguishes a lost compare-and-swap from a missing row when
// an update touched nothing.
func casOutcome(ctx context.Context, q execer, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM offer_letters WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrConflict
	}
	return ErrNotFound
}

func marshalLetterJSON(o *OfferLetter) (docs, lifecycle []byte, err error) {
	docs, err = json.Marshal(o.Documents)
	if err != nil {
		return nil, nil, err
	}
	lifecycle, err = json.Marshal(o.Lifecycle)
	if err != nil {
		return nil, nil, err
	}
	return docs, lifecycle, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLetter(row rowScanner) (*OfferLetter, error) {
	var o OfferLetter
	var agencyID, studentID, replacesID, replacedByID sql.NullString
	var issueDate, expiryDate sql.NullTime
	var amount string
	var docsJSON, lcJSON []byte

	err := row.Scan(
		&o.ID, &o.AccountID, &agencyID, &studentID, &o.StudentName, &o.ProgramName, &o.InstitutionName,
		&amount, &o.Currency, &o.Status, &o.Version, &issueDate, &expiryDate, &docsJSON, &lcJSON,
		&replacesID, &replacedByID, &o.UpdateSeq, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	o.AgencyID = agencyID.String
	o.StudentID = studentID.String
	o.ReplacesID = replacesID.String
	o.ReplacedByID = replacedByID.String
	if issueDate.Valid {
		o.IssueDate = &issueDate.Time
	}
	if expiryDate.Valid {
		o.ExpiryDate = &expiryDate.Time
	}
	if o.TuitionAmount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(docsJSON, &o.Documents); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lcJSON, &o.Lifecycle); err != nil {
		return nil, err
	}
	return &o, nil
}
