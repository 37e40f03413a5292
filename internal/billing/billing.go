// Package billing implements the billing transaction lifecycle.
//
// Flow:
//  1. A transaction is created (manually or by the schedule generator) and
//     submitted into pending
//  2. An agency claims it, the account approves it
//  3. Disagreements route through disputed → resolved
//  4. Reconcile is the terminal bookkeeping step; reconciled transactions
//     never change again
//
// Overdue is a read-time predicate over dueDate, never a stored status.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/studyarc/platform/internal/access"
	"github.com/studyarc/platform/internal/pagination"
)

var (
	ErrNotFound               = errors.New("billing: not found")
	ErrInvalidTransition      = errors.New("billing: invalid transition for current status")
	ErrImmutable              = errors.New("billing: transaction is reconciled and immutable")
	ErrConflict               = errors.New("billing: concurrent modification, retry")
	ErrInvalidAmount          = errors.New("billing: amount must be positive")
	ErrMissingDisputeReason   = errors.New("billing: dispute requires a reason")
	ErrMissingResolutionNotes = errors.New("billing: resolve requires resolution notes")
	ErrDuplicatePeriod        = errors.New("billing: transaction already generated for this period")
)

// Status represents the state of a billing transaction.
type Status string

const (
	StatusCreated    Status = "created"
	StatusPending    Status = "pending"
	StatusClaimed    Status = "claimed"
	StatusApproved   Status = "approved"
	StatusDisputed   Status = "disputed"
	StatusResolved   Status = "resolved"
	StatusReconciled Status = "reconciled"
	StatusProcessing Status = "processing"
	StatusCancelled  Status = "cancelled"
)

// Action is a requested lifecycle transition.
type Action string

const (
	ActionSubmit    Action = "submit"
	ActionClaim     Action = "claim"
	ActionApprove   Action = "approve"
	ActionDispute   Action = "dispute"
	ActionResolve   Action = "resolve"
	ActionReconcile Action = "reconcile"
	ActionCancel    Action = "cancel"
	// ActionProcess is a platform-only administrative override.
	ActionProcess Action = "process"
)

// IsTerminal returns true if no further transitions are possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusReconciled || s == StatusCancelled
}

// Transaction is one billable item between an account and an agency.
type Transaction struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"accountId"`
	AgencyID      string          `json:"agencyId,omitempty"`
	OfferLetterID string          `json:"offerLetterId,omitempty"`
	ScheduleID    string          `json:"scheduleId,omitempty"`
	PeriodIndex   int             `json:"periodIndex,omitempty"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        Status          `json:"status"`
	DueDate       *time.Time      `json:"dueDate,omitempty"`

	ClaimedBy       string     `json:"claimedBy,omitempty"`
	ApprovedBy      string     `json:"approvedBy,omitempty"`
	DisputeReason   string     `json:"disputeReason,omitempty"`
	ResolutionNotes string     `json:"resolutionNotes,omitempty"`
	ReconciledAt    *time.Time `json:"reconciledAt,omitempty"`

	UpdateSeq int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Scope returns the tenant scope this transaction belongs to.
func (t *Transaction) Scope() access.ScopeFilter {
	return access.ScopeFilter{AccountID: t.AccountID, AgencyID: t.AgencyID}
}

// Clone returns a copy.
func (t *Transaction) Clone() *Transaction {
	c := *t
	return &c
}

// Overdue reports whether the transaction is past due at time now. It is
// recomputed on every query that needs it and never persisted.
func (t *Transaction) Overdue(now time.Time) bool {
	if t.Status == StatusReconciled || t.Status == StatusCancelled {
		return false
	}
	return t.DueDate != nil && t.DueDate.Before(now)
}

// Validate checks the fields creation requires.
func (t *Transaction) Validate() error {
	if t.AccountID == "" {
		return fmt.Errorf("%w: transaction requires an account", access.ErrInvalidHierarchy)
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// TransitionInput carries the side data some actions require.
type TransitionInput struct {
	By              string
	DisputeReason   string
	ResolutionNotes string
}

// Transition computes the transaction's next state for action at time now.
// Pure: returns a modified copy, touches no storage. Reconciled rejects
// everything with ErrImmutable; other unlisted pairs fail with
// ErrInvalidTransition.
func Transition(t *Transaction, action Action, in TransitionInput, now time.Time) (*Transaction, error) {
	if t.Status == StatusReconciled {
		return nil, ErrImmutable
	}
	next := t.Clone()

	switch action {
	case ActionSubmit:
		if t.Status != StatusCreated {
			return nil, invalid(t.Status, action)
		}
		next.Status = StatusPending

	case ActionClaim:
		if t.Status != StatusPending {
			return nil, invalid(t.Status, action)
		}
		next.Status = StatusClaimed
		next.ClaimedBy = in.By

	case ActionApprove:
		if t.Status != StatusPending && t.Status != StatusClaimed && t.Status != StatusProcessing {
			return nil, invalid(t.Status, action)
		}
		next.Status = StatusApproved
		next.ApprovedBy = in.By

	case ActionDispute:
		if t.Status.IsTerminal() {
			return nil, invalid(t.Status, action)
		}
		if in.DisputeReason == "" {
			return nil, ErrMissingDisputeReason
		}
		next.Status = StatusDisputed
		next.DisputeReason = in.DisputeReason

	case ActionResolve:
		if t.Status != StatusDisputed {
			return nil, invalid(t.Status, action)
		}
		if in.ResolutionNotes == "" {
			return nil, ErrMissingResolutionNotes
		}
		next.Status = StatusResolved
		next.ResolutionNotes = in.ResolutionNotes

	case ActionReconcile:
		if t.Status != StatusApproved && t.Status != StatusResolved {
			return nil, invalid(t.Status, action)
		}
		next.Status = StatusReconciled
		next.ReconciledAt = &now

	case ActionCancel:
		if t.Status.IsTerminal() {
			return nil, invalid(t.Status, action)
		}
		next.Status = StatusCancelled

	case ActionProcess:
		// Administrative override; caller gating happens in the service.
		if t.Status.IsTerminal() {
			return nil, invalid(t.Status, action)
		}
		next.Status = StatusProcessing

	default:
		return nil, invalid(t.Status, action)
	}

	next.UpdatedAt = now
	return next, nil
}

func invalid(from Status, action Action) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, action)
}

// Store persists billing transactions. Update is compare-and-swap against
// UpdateSeq. Create enforces the (scheduleId, periodIndex) uniqueness the
// generator's idempotency depends on and reports ErrDuplicatePeriod on a hit.
type Store interface {
	Create(ctx context.Context, t *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	Update(ctx context.Context, t *Transaction, expectedSeq int64) error
	// List returns transactions ordered by (created_at, id) descending,
	// starting strictly after the cursor when one is given.
	List(ctx context.Context, scope access.ScopeFilter, status Status, limit int, after *pagination.Cursor) ([]*Transaction, error)
	ListBySchedule(ctx context.Context, scheduleID string) ([]*Transaction, error)
}
