package tenancy

import (
	"context"

	"github.com/studyarc/platform/internal/access"
)

// Store persists the tenant hierarchy.
type Store interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	UpdateAccount(ctx context.Context, a *Account) error
	ListAccounts(ctx context.Context, limit int) ([]*Account, error)

	CreateAgency(ctx context.Context, a *Agency) error
	GetAgency(ctx context.Context, id string) (*Agency, error)
	UpdateAgency(ctx context.Context, a *Agency) error
	ListAgencies(ctx context.Context, scope access.ScopeFilter, limit int) ([]*Agency, error)
	CountAgencies(ctx context.Context, accountID string) (int, error)

	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	ListUsers(ctx context.Context, scope access.ScopeFilter, limit int) ([]*User, error)
	CountUsers(ctx context.Context, accountID string) (int, error)
}
