package access

import (
	"fmt"

	"github.com/studyarc/platform/internal/metrics"
)

// Resource names a protected entity type.
type Resource string

const (
	ResourceAccount     Resource = "account"
	ResourceAgency      Resource = "agency"
	ResourceUser        Resource = "user"
	ResourceOfferLetter Resource = "offer_letter"
	ResourceTransaction Resource = "transaction"
	ResourceSchedule    Resource = "schedule"
)

// Operation names a capability evaluated per role and resource type.
type Operation string

const (
	OpCreate         Operation = "create"
	OpView           Operation = "view"
	OpEdit           Operation = "edit"
	OpDelete         Operation = "delete"
	OpApprove        Operation = "approve"
	OpManageUsers    Operation = "manage_users"
	OpManageSettings Operation = "manage_settings"
	OpManageBilling  Operation = "manage_billing"
)

// Authorize decides whether the caller may perform op on a resource whose
// tenant coordinates are target. The scope check runs before the capability
// check: a caller with full capability inside its own tenant is still denied
// for any other tenant's data, and the denial is indistinguishable from the
// entity not existing.
//
// Status-changing operations on offer letters and billing transactions only
// require the edit/approve capability here; whether the entity's current
// status permits the transition is the state machine's decision.
func Authorize(id Identity, res Resource, op Operation, target ScopeFilter) error {
	if err := id.Validate(); err != nil {
		return err
	}

	if !id.IsPlatform() {
		if !ResolveScope(id).Contains(target) {
			metrics.AuthDecisionsTotal.WithLabelValues(string(res), "out_of_scope").Inc()
			return ErrOutOfScope
		}
	}

	if allowed(id, res, op) {
		metrics.AuthDecisionsTotal.WithLabelValues(string(res), "allow").Inc()
		return nil
	}
	metrics.AuthDecisionsTotal.WithLabelValues(string(res), "forbidden").Inc()
	return fmt.Errorf("%w: %s %s on %s", ErrForbidden, id.Role, op, res)
}

// allowed applies the resource-specific overrides, falling back to the base
// role capability table.
func allowed(id Identity, res Resource, op Operation) bool {
	switch res {
	case ResourceAccount:
		switch op {
		case OpCreate, OpDelete, OpManageBilling:
			// Tenant roots and their subscription/billing terms are operated
			// by the platform only.
			return id.IsPlatform()
		case OpEdit, OpManageSettings:
			// An account's own admin may edit contact details and settings.
			if id.IsPlatform() {
				return true
			}
			return id.Portal == PortalAccount && id.Role == RoleAdmin
		case OpView:
			return true
		case OpManageUsers:
			return id.IsPlatform() || id.Role == RoleAdmin
		case OpApprove:
			return false
		}
	case ResourceAgency:
		switch op {
		case OpCreate, OpEdit, OpDelete:
			// Agencies are administered from above: the platform, or the
			// owning account's admin. An agency never administers itself.
			if id.IsPlatform() {
				return true
			}
			return id.Portal == PortalAccount && id.Role == RoleAdmin
		case OpView:
			return true
		case OpManageUsers, OpManageSettings:
			return id.IsPlatform() || id.Role == RoleAdmin
		case OpApprove, OpManageBilling:
			return false
		}
	case ResourceUser:
		switch op {
		case OpCreate, OpEdit, OpDelete, OpManageUsers:
			return id.IsPlatform() || id.Role == RoleAdmin
		case OpView:
			return true
		case OpApprove, OpManageSettings, OpManageBilling:
			return false
		}
	case ResourceOfferLetter, ResourceTransaction, ResourceSchedule:
		return baseAllows(id, op)
	}
	return false
}

// baseAllows is the role × operation capability table:
// admin ⊇ manager ⊇ user for create/edit/view; delete and the manage_*
// operations belong to admins (or any platform role).
func baseAllows(id Identity, op Operation) bool {
	if id.IsPlatform() {
		return true
	}
	switch op {
	case OpView:
		return true
	case OpCreate, OpEdit, OpApprove:
		switch id.Role {
		case RoleAdmin, RoleManager:
			return true
		case RoleUser:
			return false
		}
	case OpDelete, OpManageUsers, OpManageSettings:
		return id.Role == RoleAdmin
	case OpManageBilling:
		return false
	}
	return false
}
