// Package schedule implements recurring billing schedules.
//
// A schedule is a template: cadence, amount, start/end window. The generator
// walks cadence boundaries up to a point in time and emits one pending
// billing transaction per boundary, deduplicated by (scheduleId, periodIndex)
// so re-running a generation pass never double-bills.
package schedule

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
	ErrNotFound        = errors.New("schedule: not found")
	ErrInvalidSchedule = errors.New("schedule: invalid cadence definition")
	ErrInactive        = errors.New("schedule: schedule is not active")
)

// Cadence is the recurrence unit of a schedule.
type Cadence string

const (
	CadenceWeekly    Cadence = "weekly"
	CadenceMonthly   Cadence = "monthly"
	CadenceQuarterly Cadence = "quarterly"
	CadenceYearly    Cadence = "yearly"
)

// Schedule is a recurring billing template.
type Schedule struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"accountId"`
	AgencyID      string          `json:"agencyId,omitempty"`
	OfferLetterID string          `json:"offerLetterId,omitempty"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Cadence       Cadence         `json:"cadence"`
	// IntervalCount stretches the cadence: 2 with monthly means every
	// second month.
	IntervalCount int        `json:"intervalCount"`
	StartDate     time.Time  `json:"startDate"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	Active        bool       `json:"active"`
	LastRunAt     *time.Time `json:"lastRunAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Scope returns the tenant scope this schedule belongs to.
func (s *Schedule) Scope() access.ScopeFilter {
	return access.ScopeFilter{AccountID: s.AccountID, AgencyID: s.AgencyID}
}

// Clone returns a copy.
func (s *Schedule) Clone() *Schedule {
	c := *s
	return &c
}

// Validate rejects malformed cadence definitions at creation time, so the
// generator never has to.
func (s *Schedule) Validate() error {
	if s.AccountID == "" {
		return fmt.Errorf("%w: schedule requires an account", access.ErrInvalidHierarchy)
	}
	if !s.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidSchedule)
	}
	switch s.Cadence {
	case CadenceWeekly, CadenceMonthly, CadenceQuarterly, CadenceYearly:
	default:
		return fmt.Errorf("%w: unknown cadence %q", ErrInvalidSchedule, s.Cadence)
	}
	if s.IntervalCount <= 0 {
		return fmt.Errorf("%w: interval count must be positive", ErrInvalidSchedule)
	}
	if s.StartDate.IsZero() {
		return fmt.Errorf("%w: start date required", ErrInvalidSchedule)
	}
	if s.EndDate != nil && s.StartDate.After(*s.EndDate) {
		return fmt.Errorf("%w: start date after end date", ErrInvalidSchedule)
	}
	return nil
}

// boundary returns the index-th cadence boundary. Boundaries are always
// derived from StartDate by whole steps, never from each other's rounding,
// so month-length drift cannot accumulate.
func (s *Schedule) boundary(index int) time.Time {
	switch s.Cadence {
	case CadenceWeekly:
		return s.StartDate.AddDate(0, 0, 7*s.IntervalCount*index)
	case CadenceMonthly:
		return s.StartDate.AddDate(0, s.IntervalCount*index, 0)
	case CadenceQuarterly:
		return s.StartDate.AddDate(0, 3*s.IntervalCount*index, 0)
	case CadenceYearly:
		return s.StartDate.AddDate(s.IntervalCount*index, 0, 0)
	}
	return time.Time{}
}

// Period is one cadence boundary of a schedule.
type Period struct {
	Index    int
	Boundary time.Time
}

// DuePeriods computes every cadence boundary at or before asOf, capped by
// EndDate. Pure: no storage, no clock. The first period is index 0 at
// StartDate itself.
func (s *Schedule) DuePeriods(asOf time.Time) []Period {
	var out []Period
	for i := 0; ; i++ {
		b := s.boundary(i)
		if b.After(asOf) {
			break
		}
		if s.EndDate != nil && b.After(*s.EndDate) {
			break
		}
		out = append(out, Period{Index: i, Boundary: b})
	}
	return out
}

// Store persists schedules.
type Store interface {
	Create(ctx context.Context, s *Schedule) error
	Get(ctx context.Context, id string) (*Schedule, error)
	Update(ctx context.Context, s *Schedule) error
	// List returns schedules ordered by (created_at, id) descending,
	// starting strictly after the cursor when one is given.
	List(ctx context.Context, scope access.ScopeFilter, limit int, after *pagination.Cursor) ([]*Schedule, error)
	ListActive(ctx context.Context, limit int) ([]*Schedule, error)
}
