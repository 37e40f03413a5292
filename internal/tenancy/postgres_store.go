package tenancy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"

	"github.com/studyarc/platform/internal/access"
)

// PostgresStore persists the tenant hierarchy in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed tenancy store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ---------- Accounts ----------

func (p *PostgresStore) CreateAccount(ctx context.Context, a *Account) error {
	subJSON, err := json.Marshal(a.Subscription)
	if err != nil {
		return err
	}
	billJSON, err := json.Marshal(a.Billing)
	if err != nil {
		return err
	}
	setJSON, err := json.Marshal(a.Settings)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, contact_email, contact_phone, subscription, billing, settings, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.Name, a.ContactEmail, a.ContactPhone, subJSON, billJSON, setJSON,
		a.IsActive, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	return scanAccount(p.db.QueryRowContext(ctx, `
		SELECT id, name, contact_email, contact_phone, subscription, billing, settings, is_active, created_at, updated_at
		FROM accounts WHERE id = $1`, id))
}

func (p *PostgresStore) UpdateAccount(ctx context.Context, a *Account) error {
	subJSON, err := json.Marshal(a.Subscription)
	if err != nil {
		return err
	}
	billJSON, err := json.Marshal(a.Billing)
	if err != nil {
		return err
	}
	setJSON, err := json.Marshal(a.Settings)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE accounts SET name = $1, contact_email = $2, contact_phone = $3,
			subscription = $4, billing = $5, settings = $6, is_active = $7, updated_at = $8
		WHERE id = $9`,
		a.Name, a.ContactEmail, a.ContactPhone, subJSON, billJSON, setJSON,
		a.IsActive, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return err
	}
	return mustAffect(result, ErrAccountNotFound)
}

func (p *PostgresStore) ListAccounts(ctx context.Context, limit int) ([]*Account, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, contact_email, contact_phone, subscription, billing, settings, is_active, created_at, updated_at
		FROM accounts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---------- Agencies ----------

func (p *PostgresStore) CreateAgency(ctx context.Context, a *Agency) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO agencies (id, account_id, name, contact_email, commission_split_percent, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.AccountID, a.Name, a.ContactEmail, a.CommissionSplitPercent,
		a.IsActive, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrAccountNotFound
		}
		return err
	}
	return nil
}

func (p *PostgresStore) GetAgency(ctx context.Context, id string) (*Agency, error) {
	return scanAgency(p.db.QueryRowContext(ctx, `
		SELECT id, account_id, name, contact_email, commission_split_percent, is_active, created_at, updated_at
		FROM agencies WHERE id = $1`, id))
}

func (p *PostgresStore) UpdateAgency(ctx context.Context, a *Agency) error {
	// account_id is intentionally not updatable.
	result, err := p.db.ExecContext(ctx, `
		UPDATE agencies SET name = $1, contact_email = $2, commission_split_percent = $3,
			is_active = $4, updated_at = $5
		WHERE id = $6`,
		a.Name, a.ContactEmail, a.CommissionSplitPercent, a.IsActive, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return err
	}
	return mustAffect(result, ErrAgencyNotFound)
}

func (p *PostgresStore) ListAgencies(ctx context.Context, scope access.ScopeFilter, limit int) ([]*Agency, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, account_id, name, contact_email, commission_split_percent, is_active, created_at, updated_at
		FROM agencies
		WHERE ($1 = '' OR account_id = $1) AND ($2 = '' OR id = $2)
		ORDER BY created_at DESC LIMIT $3`,
		scope.AccountID, scope.AgencyID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Agency
	for rows.Next() {
		a, err := scanAgency(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CountAgencies(ctx context.Context, accountID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM agencies WHERE account_id = $1 AND is_active`, accountID).Scan(&count)
	return count, err
}

// ---------- Users ----------

func (p *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, portal, role, account_id, agency_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10)`,
		u.ID, u.Email, u.Name, string(u.Portal), string(u.Role), u.AccountID, u.AgencyID,
		u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) GetUser(ctx context.Context, id string) (*User, error) {
	return scanUser(p.db.QueryRowContext(ctx, `
		SELECT id, email, name, portal, role, account_id, agency_id, is_active, created_at, updated_at
		FROM users WHERE id = $1`, id))
}

func (p *PostgresStore) UpdateUser(ctx context.Context, u *User) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE users SET email = $1, name = $2, role = $3, is_active = $4, updated_at = $5
		WHERE id = $6`,
		u.Email, u.Name, string(u.Role), u.IsActive, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return err
	}
	return mustAffect(result, ErrUserNotFound)
}

func (p *PostgresStore) ListUsers(ctx context.Context, scope access.ScopeFilter, limit int) ([]*User, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, email, name, portal, role, account_id, agency_id, is_active, created_at, updated_at
		FROM users
		WHERE ($1 = '' OR account_id = $1) AND ($2 = '' OR agency_id = $2)
		ORDER BY created_at DESC LIMIT $3`,
		scope.AccountID, scope.AgencyID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CountUsers(ctx context.Context, accountID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users WHERE account_id = $1 AND is_active`, accountID).Scan(&count)
	return count, err
}

// ---------- scanning ----------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	a := &Account{}
	var (
		phone                     sql.NullString
		subJSON, billJSON, setJSON []byte
	)
	err := row.Scan(&a.ID, &a.Name, &a.ContactEmail, &phone, &subJSON, &billJSON, &setJSON,
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	a.ContactPhone = phone.String
	if err := json.Unmarshal(subJSON, &a.Subscription); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(billJSON, &a.Billing); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(setJSON, &a.Settings); err != nil {
		return nil, err
	}
	return a, nil
}

func scanAgency(row rowScanner) (*Agency, error) {
	a := &Agency{}
	var email sql.NullString
	err := row.Scan(&a.ID, &a.AccountID, &a.Name, &email, &a.CommissionSplitPercent,
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAgencyNotFound
	}
	if err != nil {
		return nil, err
	}
	a.ContactEmail = email.String
	return a, nil
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	var (
		portal, role        string
		accountID, agencyID sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &portal, &role, &accountID, &agencyID,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Portal = access.Portal(portal)
	u.Role = access.Role(role)
	u.AccountID = accountID.String
	u.AgencyID = agencyID.String
	return u, nil
}

func mustAffect(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
