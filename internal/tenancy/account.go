// Package tenancy models the Platform → Account → Agency → User hierarchy.
//
// Accounts are tenant roots. Agencies belong to exactly one account. Users
// belong to an account and, for agency-portal users, to one of its agencies.
// Entities here are created and retired by administrative action only; none
// of the state machines in other packages create or destroy them.
package tenancy

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/studyarc/platform/internal/access"
)

// Errors
var (
	ErrAccountNotFound = errors.New("tenancy: account not found")
	ErrAgencyNotFound  = errors.New("tenancy: agency not found")
	ErrUserNotFound    = errors.New("tenancy: user not found")
	ErrEmailTaken      = errors.New("tenancy: email already registered")
	ErrInvalidSplit    = errors.New("tenancy: commission split must be between 0 and 100")
	ErrMaxAgencies     = errors.New("tenancy: maximum agencies reached for plan")
	ErrMaxUsers        = errors.New("tenancy: maximum users reached for plan")
)

// SubscriptionPlan identifies an account's pricing tier.
type SubscriptionPlan string

const (
	PlanTrial      SubscriptionPlan = "trial"
	PlanStarter    SubscriptionPlan = "starter"
	PlanGrowth     SubscriptionPlan = "growth"
	PlanEnterprise SubscriptionPlan = "enterprise"
)

// ValidPlan reports whether p is a known plan.
func ValidPlan(p SubscriptionPlan) bool {
	switch p {
	case PlanTrial, PlanStarter, PlanGrowth, PlanEnterprise:
		return true
	}
	return false
}

// SubscriptionStatus is the commercial state of an account's subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionTrialing  SubscriptionStatus = "trialing"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription holds the platform-managed commercial terms of an account.
// Only platform callers may change these fields.
type Subscription struct {
	Plan        SubscriptionPlan   `json:"plan"`
	Status      SubscriptionStatus `json:"status"`
	MaxUsers    int                `json:"maxUsers"`
	MaxAgencies int                `json:"maxAgencies"`
	TrialEndsAt *time.Time         `json:"trialEndsAt,omitempty"`
	AutoRenew   bool               `json:"autoRenew"`
}

// BillingCycle is how often an account is invoiced.
type BillingCycle string

const (
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleAnnual    BillingCycle = "annual"
)

// AccountBilling holds the account-level billing position.
type AccountBilling struct {
	Cycle              BillingCycle    `json:"cycle"`
	Status             string          `json:"status"`
	NextBillingDate    *time.Time      `json:"nextBillingDate,omitempty"`
	OutstandingBalance decimal.Decimal `json:"outstandingBalance"`
}

// AccountSettings holds tenant-configurable defaults, resolved once at
// construction time so read sites never deal with absent values.
type AccountSettings struct {
	Timezone string `json:"timezone"`
	Currency string `json:"currency"`
	// NotifyURL, when set, receives billing event callbacks for the account.
	NotifyURL string `json:"notifyUrl,omitempty"`
}

// DefaultSettings returns the settings applied when an account is created
// without explicit values.
func DefaultSettings() AccountSettings {
	return AccountSettings{Timezone: "UTC", Currency: "USD"}
}

// DefaultSubscriptionForPlan returns the subscription limits for a plan.
func DefaultSubscriptionForPlan(p SubscriptionPlan) Subscription {
	sub := Subscription{Plan: p, Status: SubscriptionActive, AutoRenew: true}
	switch p {
	case PlanTrial:
		sub.Status = SubscriptionTrialing
		sub.MaxUsers = 3
		sub.MaxAgencies = 1
		sub.AutoRenew = false
	case PlanStarter:
		sub.MaxUsers = 10
		sub.MaxAgencies = 5
	case PlanGrowth:
		sub.MaxUsers = 50
		sub.MaxAgencies = 25
	case PlanEnterprise:
		sub.MaxUsers = 500
		sub.MaxAgencies = 250
	}
	return sub
}

// Account is a tenant root: an education provider using the platform.
type Account struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	ContactEmail string          `json:"contactEmail"`
	ContactPhone string          `json:"contactPhone,omitempty"`
	Subscription Subscription    `json:"subscription"`
	Billing      AccountBilling  `json:"billing"`
	Settings     AccountSettings `json:"settings"`
	IsActive     bool            `json:"isActive"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Scope returns the account's tenant coordinates for authorization checks.
func (a *Account) Scope() access.ScopeFilter {
	return access.ScopeFilter{AccountID: a.ID}
}
