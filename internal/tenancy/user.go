package tenancy

import (
	"time"

	"github.com/studyarc/platform/internal/access"
)

// User is a portal login. Its Identity fields pin it to a tier of the
// hierarchy; the same containment rules as for callers apply.
type User struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	Portal    access.Portal `json:"portal"`
	Role      access.Role   `json:"role"`
	AccountID string        `json:"accountId,omitempty"`
	AgencyID  string        `json:"agencyId,omitempty"`
	IsActive  bool          `json:"isActive"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Identity returns the access identity this user authenticates as.
func (u *User) Identity() access.Identity {
	return access.Identity{
		Portal:    u.Portal,
		Role:      u.Role,
		AccountID: u.AccountID,
		AgencyID:  u.AgencyID,
	}
}

// Validate enforces the hierarchy invariants: an agency-portal user needs
// both an account and an agency, an account-portal user needs an account.
func (u *User) Validate() error {
	return u.Identity().Validate()
}

// Scope returns the user's tenant coordinates for authorization checks.
func (u *User) Scope() access.ScopeFilter {
	return access.ScopeFilter{AccountID: u.AccountID, AgencyID: u.AgencyID}
}
