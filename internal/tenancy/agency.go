package tenancy

import (
	"fmt"
	"time"

	"github.com/studyarc/platform/internal/access"
)

// Agency is a partner recruitment agency operating under one account.
// AccountID is immutable after creation.
type Agency struct {
	ID                     string    `json:"id"`
	AccountID              string    `json:"accountId"`
	Name                   string    `json:"name"`
	ContactEmail           string    `json:"contactEmail,omitempty"`
	CommissionSplitPercent int       `json:"commissionSplitPercent"`
	IsActive               bool      `json:"isActive"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// Validate enforces the structural invariants of an agency record.
func (a *Agency) Validate() error {
	if a.AccountID == "" {
		return fmt.Errorf("%w: agency requires an owning account", access.ErrInvalidHierarchy)
	}
	if a.CommissionSplitPercent < 0 || a.CommissionSplitPercent > 100 {
		return ErrInvalidSplit
	}
	return nil
}

// Scope returns the agency's tenant coordinates for authorization checks.
func (a *Agency) Scope() access.ScopeFilter {
	return access.ScopeFilter{AccountID: a.AccountID, AgencyID: a.ID}
}
