package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/studyarc/platform/internal/access"
)

// PostgresStore persists API keys in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed key store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, key *APIKey) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, key_hash, portal, role, account_id, agency_id, user_id, name, created_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11)`,
		key.ID, key.Hash, string(key.Identity.Portal), string(key.Identity.Role),
		key.Identity.AccountID, key.Identity.AgencyID, key.UserID, key.Name,
		key.CreatedAt, key.ExpiresAt, key.Revoked,
	)
	return err
}

func (p *PostgresStore) GetByID(ctx context.Context, id string) (*APIKey, error) {
	return p.scanKey(p.db.QueryRowContext(ctx, `
		SELECT id, key_hash, portal, role, account_id, agency_id, user_id, name, created_at, last_used, expires_at, revoked
		FROM api_keys WHERE id = $1`, id))
}

func (p *PostgresStore) GetByHash(ctx context.Context, hash string) (*APIKey, error) {
	return p.scanKey(p.db.QueryRowContext(ctx, `
		SELECT id, key_hash, portal, role, account_id, agency_id, user_id, name, created_at, last_used, expires_at, revoked
		FROM api_keys WHERE key_hash = $1`, hash))
}

func (p *PostgresStore) ListByAccount(ctx context.Context, accountID string) ([]*APIKey, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, key_hash, portal, role, account_id, agency_id, user_id, name, created_at, last_used, expires_at, revoked
		FROM api_keys WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*APIKey
	for rows.Next() {
		key, err := p.scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, key *APIKey) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used = $1, expires_at = $2, revoked = $3 WHERE id = $4`,
		key.LastUsed, key.ExpiresAt, key.Revoked, key.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrKeyNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *PostgresStore) scanKey(row rowScanner) (*APIKey, error) {
	key := &APIKey{}
	var (
		portal, role                  string
		accountID, agencyID, userID   sql.NullString
		lastUsed                      sql.NullTime
	)
	err := row.Scan(&key.ID, &key.Hash, &portal, &role, &accountID, &agencyID, &userID,
		&key.Name, &key.CreatedAt, &lastUsed, &key.ExpiresAt, &key.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	key.Identity = access.Identity{
		Portal:    access.Portal(portal),
		Role:      access.Role(role),
		AccountID: accountID.String,
		AgencyID:  agencyID.String,
	}
	key.UserID = userID.String
	if lastUsed.Valid {
		key.LastUsed = lastUsed.Time
	}
	return key, nil
}
