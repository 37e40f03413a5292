// Package offerletter implements the offer letter lifecycle.
//
// Flow:
//  1. An agency or account drafts an offer letter for a student
//  2. The letter is issued and carries an expiry date
//  3. The student accepts or rejects, or the letter is replaced by a
//     corrected version (predecessor frozen, successor issued at version+1)
//  4. Issued letters past expiry read as expired without any write
//
// Status is only ever changed through Transition and Replace; handlers and
// stores never write the field directly.
package offerletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/studyarc/platform/internal/access"
	"github.com/studyarc/platform/internal/idgen"
	"github.com/studyarc/platform/internal/pagination"
)

var (
	ErrNotFound          = errors.New("offerletter: not found")
	ErrInvalidTransition = errors.New("offerletter: invalid transition for current status")
	ErrImmutable         = errors.New("offerletter: entity is immutable in its current status")
	ErrConflict          = errors.New("offerletter: concurrent modification, retry")
	ErrInvalidAmount     = errors.New("offerletter: tuition amount must be positive")
	ErrMissingExpiry     = errors.New("offerletter: issue requires an expiry date")
)

// Status represents the state of an offer letter.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusIssued    Status = "issued"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusReplaced  Status = "replaced"
	StatusCancelled Status = "cancelled"
)

// Action is a requested lifecycle transition.
type Action string

const (
	ActionIssue   Action = "issue"
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
	ActionReplace Action = "replace"
)

// IsTerminal returns true if no further transitions are possible from s.
// Accepted letters are terminal for lifecycle purposes but may still be
// cancelled administratively.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusExpired, StatusReplaced, StatusCancelled:
		return true
	}
	return false
}

// Document is an attachment on an offer letter. Documents are append-only;
// there is no delete.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType,omitempty"`
	UploadedBy  string    `json:"uploadedBy,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Lifecycle records when each terminal-ish event happened.
type Lifecycle struct {
	IssuedAt    *time.Time `json:"issuedAt,omitempty"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	ReplacedAt  *time.Time `json:"replacedAt,omitempty"`
}

// OfferLetter belongs to one account and optionally one agency and student.
type OfferLetter struct {
	ID              string          `json:"id"`
	AccountID       string          `json:"accountId"`
	AgencyID        string          `json:"agencyId,omitempty"`
	StudentID       string          `json:"studentId,omitempty"`
	StudentName     string          `json:"studentName"`
	ProgramName     string          `json:"programName"`
	InstitutionName string          `json:"institutionName,omitempty"`
	TuitionAmount   decimal.Decimal `json:"tuitionAmount"`
	Currency        string          `json:"currency"`
	Status          Status          `json:"status"`
	Version         int             `json:"version"`
	IssueDate       *time.Time      `json:"issueDate,omitempty"`
	ExpiryDate      *time.Time      `json:"expiryDate,omitempty"`
	Documents       []Document      `json:"documents"`
	Lifecycle       Lifecycle       `json:"lifecycle"`
	ReplacesID      string          `json:"replacesId,omitempty"`
	ReplacedByID    string          `json:"replacedById,omitempty"`
	UpdateSeq       int64           `json:"-"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Scope returns the tenant scope this letter belongs to.
func (o *OfferLetter) Scope() access.ScopeFilter {
	return access.ScopeFilter{AccountID: o.AccountID, AgencyID: o.AgencyID}
}

// Clone returns a deep copy.
func (o *OfferLetter) Clone() *OfferLetter {
	c := *o
	c.Documents = make([]Document, len(o.Documents))
	copy(c.Documents, o.Documents)
	return &c
}

// EffectiveStatus is the status a reader must see at time now. An issued
// letter past its expiry date reads as expired even before any write has
// recorded the fact.
func (o *OfferLetter) EffectiveStatus(now time.Time) Status {
	if o.Status == StatusIssued && o.ExpiryDate != nil && o.ExpiryDate.Before(now) {
		return StatusExpired
	}
	return o.Status
}

// Transition computes the letter's next state for action at time now. It is
// a pure function: it returns a modified copy and never touches storage.
// Replace is the one action not handled here, because it produces a second
// entity; see Replace.
func Transition(o *OfferLetter, action Action, now time.Time) (*OfferLetter, error) {
	next := o.Clone()
	eff := o.EffectiveStatus(now)

	switch {
	case eff == StatusDraft && action == ActionIssue:
		if o.ExpiryDate == nil {
			return nil, ErrMissingExpiry
		}
		next.Status = StatusIssued
		issuedAt := now
		next.IssueDate = &issuedAt
		next.Lifecycle.IssuedAt = &issuedAt

	case eff == StatusDraft && action == ActionCancel:
		next.Status = StatusCancelled
		next.Lifecycle.CancelledAt = &now

	case eff == StatusIssued && action == ActionAccept:
		next.Status = StatusAccepted
		next.Lifecycle.AcceptedAt = &now

	case eff == StatusIssued && action == ActionReject:
		next.Status = StatusRejected
		next.Lifecycle.RejectedAt = &now

	case eff == StatusIssued && action == ActionCancel:
		next.Status = StatusCancelled
		next.Lifecycle.CancelledAt = &now

	case eff == StatusAccepted && action == ActionCancel:
		next.Status = StatusCancelled
		next.Lifecycle.CancelledAt = &now

	default:
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, eff, action)
	}

	next.UpdatedAt = now
	return next, nil
}

// Replace freezes an issued letter and creates its successor at version+1.
// The successor starts out issued with the same commercial terms; callers
// adjust fields on the successor before persisting if the replacement
// carries corrections. The two writes must commit together at the storage
// boundary (Store.Replace).
func Replace(pred *OfferLetter, now time.Time) (*OfferLetter, *OfferLetter, error) {
	if pred.EffectiveStatus(now) != StatusIssued {
		return nil, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, pred.EffectiveStatus(now), ActionReplace)
	}

	succ := pred.Clone()
	succ.ID = idgen.WithPrefix("ofl_")
	succ.Version = pred.Version + 1
	succ.Status = StatusIssued
	succ.ReplacesID = pred.ID
	succ.ReplacedByID = ""
	succ.Documents = nil
	succ.Lifecycle = Lifecycle{IssuedAt: &now}
	issuedAt := now
	succ.IssueDate = &issuedAt
	succ.UpdateSeq = 0
	succ.CreatedAt = now
	succ.UpdatedAt = now

	frozen := pred.Clone()
	frozen.Status = StatusReplaced
	frozen.ReplacedByID = succ.ID
	frozen.Lifecycle.ReplacedAt = &now
	frozen.UpdatedAt = now

	return frozen, succ, nil
}

// AppendDocument adds an attachment. Terminal letters are frozen: a replaced
// letter belongs to its successor, and rejected/expired/cancelled letters
// accept no further writes.
func AppendDocument(o *OfferLetter, doc Document, now time.Time) (*OfferLetter, error) {
	if o.EffectiveStatus(now).IsTerminal() {
		return nil, ErrImmutable
	}
	next := o.Clone()
	if doc.ID == "" {
		doc.ID = idgen.WithPrefix("doc_")
	}
	doc.UploadedAt = now
	next.Documents = append(next.Documents, doc)
	next.UpdatedAt = now
	return next, nil
}

// Validate checks the fields that creation requires.
func (o *OfferLetter) Validate() error {
	if o.AccountID == "" {
		return fmt.Errorf("%w: offer letter requires an account", access.ErrInvalidHierarchy)
	}
	if !o.TuitionAmount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Store persists offer letters. Update and Replace are compare-and-swap:
// they fail with ErrConflict when the stored UpdateSeq no longer matches
// expectedSeq, and on success bump the sequence by one.
type Store interface {
	Create(ctx context.Context, o *OfferLetter) error
	Get(ctx context.Context, id string) (*OfferLetter, error)
	Update(ctx context.Context, o *OfferLetter, expectedSeq int64) error
	// Replace atomically freezes pred and creates succ. No observable
	// intermediate state exists where both letters are mutable.
	Replace(ctx context.Context, pred *OfferLetter, expectedSeq int64, succ *OfferLetter) error
	// List returns letters ordered by (created_at, id) descending, starting
	// strictly after the cursor when one is given.
	List(ctx context.Context, scope access.ScopeFilter, status Status, limit int, after *pagination.Cursor) ([]*OfferLetter, error)
}
