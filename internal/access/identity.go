// Package access implements the multi-tenant authorization core: caller
// identity, scope resolution, and capability evaluation.
//
// Every function in this package is a pure decision over explicit inputs.
// Nothing here reads ambient state, touches a clock, or performs I/O; the
// caller identity is always an explicit parameter.
package access

import (
	"errors"
	"fmt"
)

// Errors
var (
	// ErrOutOfScope means the caller's resolved scope excludes the target.
	// Handlers surface it identically to a not-found so the existence of
	// out-of-scope entities never leaks.
	ErrOutOfScope = errors.New("access: target outside caller scope")

	// ErrForbidden means the target is in scope but the caller's role lacks
	// the capability.
	ErrForbidden = errors.New("access: operation not permitted for role")

	// ErrInvalidHierarchy means an identity or entity violates the
	// Platform → Account → Agency containment rules.
	ErrInvalidHierarchy = errors.New("access: invalid tenant hierarchy")
)

// Portal is the caller's tenant tier, which determines default data scope.
type Portal string

const (
	PortalPlatform Portal = "platform"
	PortalAccount  Portal = "account"
	PortalAgency   Portal = "agency"
)

// Valid reports whether p is a known portal type.
func (p Portal) Valid() bool {
	switch p {
	case PortalPlatform, PortalAccount, PortalAgency:
		return true
	}
	return false
}

// Role is the caller's permission tier within its portal.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}

// Identity is the authenticated caller context threaded through every
// authorization decision. AccountID/AgencyID are empty when not applicable.
type Identity struct {
	Portal    Portal `json:"portal"`
	Role      Role   `json:"role"`
	AccountID string `json:"accountId,omitempty"`
	AgencyID  string `json:"agencyId,omitempty"`
}

// Validate enforces the containment invariants:
// account-portal identities carry an account ID, agency-portal identities
// carry both an account and an agency ID, platform identities carry neither.
func (id Identity) Validate() error {
	if !id.Portal.Valid() {
		return fmt.Errorf("%w: unknown portal %q", ErrInvalidHierarchy, id.Portal)
	}
	if !id.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidHierarchy, id.Role)
	}
	switch id.Portal {
	case PortalPlatform:
		if id.AccountID != "" || id.AgencyID != "" {
			return fmt.Errorf("%w: platform identity must not be tenant-bound", ErrInvalidHierarchy)
		}
	case PortalAccount:
		if id.AccountID == "" {
			return fmt.Errorf("%w: account identity requires accountId", ErrInvalidHierarchy)
		}
		if id.AgencyID != "" {
			return fmt.Errorf("%w: account identity must not carry agencyId", ErrInvalidHierarchy)
		}
	case PortalAgency:
		if id.AccountID == "" || id.AgencyID == "" {
			return fmt.Errorf("%w: agency identity requires accountId and agencyId", ErrInvalidHierarchy)
		}
	}
	return nil
}

// IsPlatform reports whether the identity is platform-scoped.
func (id Identity) IsPlatform() bool {
	return id.Portal == PortalPlatform
}
