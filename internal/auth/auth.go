// Package auth provides API-key authentication for the platform.
//
// Authentication model:
//   - Every key is bound to an access.Identity (portal, role, tenant IDs)
//     at issuance time; validating a key yields that identity.
//   - Token issuance/verification beyond this (SSO, JWT) is the concern of
//     an upstream gateway; the core only needs a resolved caller identity.
//   - The platform bootstrap secret (ADMIN_SECRET) authenticates as a
//     platform/admin identity without a stored key.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/studyarc/platform/internal/access"
)

// Errors
var (
	ErrNoAPIKey      = errors.New("auth: API key required")
	ErrInvalidAPIKey = errors.New("auth: invalid or expired API key")
	ErrKeyNotFound   = errors.New("auth: API key not found")
)

// APIKey is a stored credential bound to a caller identity.
type APIKey struct {
	ID        string          `json:"id"`
	Hash      string          `json:"-"` // SHA-256 of the raw key
	Identity  access.Identity `json:"identity"`
	UserID    string          `json:"userId,omitempty"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"createdAt"`
	LastUsed  time.Time       `json:"lastUsed,omitempty"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
	Revoked   bool            `json:"revoked"`
}

// Store persists API keys.
type Store interface {
	Create(ctx context.Context, key *APIKey) error
	GetByID(ctx context.Context, id string) (*APIKey, error)
	GetByHash(ctx context.Context, hash string) (*APIKey, error)
	ListByAccount(ctx context.Context, accountID string) ([]*APIKey, error)
	Update(ctx context.Context, key *APIKey) error
	Delete(ctx context.Context, id string) error
}

// Manager handles key issuance and validation.
type Manager struct {
	store       Store
	adminSecret string
}

// NewManager creates a new auth manager. adminSecret may be empty, in which
// case platform bootstrap auth is disabled.
func NewManager(store Store, adminSecret string) *Manager {
	return &Manager{store: store, adminSecret: adminSecret}
}

// Store exposes the underlying key store.
func (m *Manager) Store() Store { return m.store }

// GenerateKey creates a new API key bound to the given identity.
// Returns the raw key (shown once) and the stored metadata.
func (m *Manager) GenerateKey(ctx context.Context, id access.Identity, name string) (rawKey string, key *APIKey, err error) {
	if err := id.Validate(); err != nil {
		return "", nil, err
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", nil, err
	}
	rawKey = "sk_" + hex.EncodeToString(b)

	key = &APIKey{
		ID:        "ak_" + hex.EncodeToString(b[:8]),
		Hash:      hashKey(rawKey),
		Identity:  id,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := m.store.Create(ctx, key); err != nil {
		return "", nil, err
	}
	return rawKey, key, nil
}

// ValidateKey validates a raw key and returns the identity it carries.
// The platform bootstrap secret authenticates as platform/admin.
func (m *Manager) ValidateKey(ctx context.Context, rawKey string) (access.Identity, *APIKey, error) {
	if rawKey == "" {
		return access.Identity{}, nil, ErrNoAPIKey
	}
	rawKey = strings.TrimSpace(strings.TrimPrefix(rawKey, "Bearer "))

	if m.adminSecret != "" && subtle.ConstantTimeCompare([]byte(rawKey), []byte(m.adminSecret)) == 1 {
		return access.Identity{Portal: access.PortalPlatform, Role: access.RoleAdmin}, nil, nil
	}

	if !strings.HasPrefix(rawKey, "sk_") {
		return access.Identity{}, nil, ErrInvalidAPIKey
	}

	key, err := m.store.GetByHash(ctx, hashKey(rawKey))
	if err != nil {
		return access.Identity{}, nil, ErrInvalidAPIKey
	}
	if key.Revoked {
		return access.Identity{}, nil, ErrInvalidAPIKey
	}
	if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		return access.Identity{}, nil, ErrInvalidAPIKey
	}

	// Update last used (fire and forget).
	go func() {
		key.LastUsed = time.Now()
		_ = m.store.Update(context.Background(), key)
	}()

	return key.Identity, key, nil
}

// RevokeKey marks a key revoked.
func (m *Manager) RevokeKey(ctx context.Context, id string) error {
	key, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	key.Revoked = true
	return m.store.Update(ctx, key)
}

func hashKey(rawKey string) string {
	h := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(h[:])
}
