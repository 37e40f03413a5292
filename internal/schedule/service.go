package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/studyarc/platform/internal/access"
	"github.com/studyarc/platform/internal/billing"
	"github.com/studyarc/platform/internal/idgen"
	"github.com/studyarc/platform/internal/logging"
	"github.com/studyarc/platform/internal/metrics"
	"github.com/studyarc/platform/internal/pagination"
	"github.com/studyarc/platform/internal/realtime"
	"github.com/studyarc/platform/internal/traces"
)

// Notifier pushes domain events to connected portal clients.
type Notifier interface {
	Publish(eventType realtime.EventType, accountID, agencyID string, data any)
}

// Service manages schedules and runs the transaction generator.
type Service struct {
	store    Store
	billing  billing.Store
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new schedule service. notifier may be nil.
func NewService(store Store, billingStore billing.Store, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{store: store, billing: billingStore, notifier: notifier, logger: logger, now: time.Now}
}

// CreateInput carries the fields a caller provides for a new schedule.
type CreateInput struct {
	AccountID     string          `json:"accountId"`
	AgencyID      string          `json:"agencyId"`
	OfferLetterID string          `json:"offerLetterId"`
	Description   string          `json:"description" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Cadence       Cadence         `json:"cadence" binding:"required"`
	IntervalCount int             `json:"intervalCount"`
	StartDate     time.Time       `json:"startDate" binding:"required"`
	EndDate       *time.Time      `json:"endDate"`
}

// Create registers a schedule. Malformed cadence definitions are rejected
// here; generation never re-validates.
func (s *Service) Create(ctx context.Context, caller access.Identity, in CreateInput) (*Schedule, error) {
	ctx, span := traces.StartSpan(ctx, "schedule.Create", traces.AccountID(in.AccountID))
	defer span.End()

	target := access.ScopeFilter{AccountID: in.AccountID, AgencyID: in.AgencyID}
	if err := access.Authorize(caller, access.ResourceSchedule, access.OpCreate, target); err != nil {
		return nil, err
	}

	if in.IntervalCount == 0 {
		in.IntervalCount = 1
	}
	now := s.now()
	sched := &Schedule{
		ID:            idgen.WithPrefix("sch_"),
		AccountID:     in.AccountID,
		AgencyID:      in.AgencyID,
		OfferLetterID: in.OfferLetterID,
		Description:   in.Description,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Cadence:       in.Cadence,
		IntervalCount: in.IntervalCount,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := sched.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, sched); err != nil {
		return nil, err
	}
	logging.L(ctx).Info("schedule created",
		"id", sched.ID, "account", sched.AccountID, "cadence", sched.Cadence)
	return sched, nil
}

// Get loads one schedule.
func (s *Service) Get(ctx context.Context, caller access.Identity, id string) (*Schedule, error) {
	sched, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(caller, access.ResourceSchedule, access.OpView, sched.Scope()); err != nil {
		return nil, err
	}
	return sched, nil
}

// List returns one page of schedules visible to the caller, newest first.
// The returned cursor resumes the walk; it is empty on the last page.
func (s *Service) List(ctx context.Context, caller access.Identity, requested access.ScopeFilter, limit int, after *pagination.Cursor) ([]*Schedule, string, error) {
	scope, err := access.NarrowFilter(caller, requested)
	if err != nil {
		return nil, "", err
	}
	limit = pagination.Clamp(limit)
	schedules, err := s.store.List(ctx, scope, limit+1, after)
	if err != nil {
		return nil, "", err
	}
	schedules, next, _ := pagination.ComputePage(schedules, limit, func(sc *Schedule) (time.Time, string) {
		return sc.CreatedAt, sc.ID
	})
	return schedules, next, nil
}

// SetActive pauses or resumes a schedule. Paused schedules generate nothing;
// transactions already generated are unaffected.
func (s *Service) SetActive(ctx context.Context, caller access.Identity, id string, active bool) (*Schedule, error) {
	sched, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(caller, access.ResourceSchedule, access.OpEdit, sched.Scope()); err != nil {
		return nil, err
	}
	sched.Active = active
	sched.UpdatedAt = s.now()
	if err := s.store.Update(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// GenerateDue emits pending transactions for every cadence boundary of one
// schedule at or before asOf that has not been generated yet. Idempotent:
// the (scheduleId, periodIndex) uniqueness at the storage boundary makes a
// re-run with the same asOf a no-op, including against concurrent runs.
func (s *Service) GenerateDue(ctx context.Context, caller access.Identity, id string, asOf time.Time) ([]*billing.Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "schedule.GenerateDue", traces.ScheduleID(id))
	defer span.End()

	sched, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(caller, access.ResourceSchedule, access.OpEdit, sched.Scope()); err != nil {
		return nil, err
	}
	if !sched.Active {
		return nil, ErrInactive
	}
	return s.generate(ctx, sched, asOf)
}

func (s *Service) generate(ctx context.Context, sched *Schedule, asOf time.Time) ([]*billing.Transaction, error) {
	periods := sched.DuePeriods(asOf)
	now := s.now()

	var generated []*billing.Transaction
	for _, p := range periods {
		due := p.Boundary
		tx := &billing.Transaction{
			ID:            idgen.WithPrefix("txn_"),
			AccountID:     sched.AccountID,
			AgencyID:      sched.AgencyID,
			OfferLetterID: sched.OfferLetterID,
			ScheduleID:    sched.ID,
			PeriodIndex:   p.Index,
			Description:   fmt.Sprintf("%s (period %d)", sched.Description, p.Index+1),
			Amount:        sched.Amount,
			Currency:      sched.Currency,
			Status:        billing.StatusPending,
			DueDate:       &due,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		err := s.billing.Create(ctx, tx)
		if errors.Is(err, billing.ErrDuplicatePeriod) {
			continue // already generated, possibly by a concurrent run
		}
		if err != nil {
			metrics.ScheduleRunsTotal.WithLabelValues("error").Inc()
			return generated, err
		}
		generated = append(generated, tx)
		metrics.ScheduleTransactionsGenerated.Inc()
		if s.notifier != nil {
			s.notifier.Publish(realtime.EventScheduleRun, tx.AccountID, tx.AgencyID, map[string]any{
				"scheduleId":    sched.ID,
				"transactionId": tx.ID,
				"periodIndex":   p.Index,
			})
		}
	}

	sched.LastRunAt = &now
	sched.UpdatedAt = now
	if err := s.store.Update(ctx, sched); err != nil {
		s.logger.Warn("failed to record schedule run", "schedule", sched.ID, "error", err)
	}

	metrics.ScheduleRunsTotal.WithLabelValues("ok").Inc()
	if len(generated) > 0 {
		logging.L(ctx).Info("schedule generated transactions",
			"schedule", sched.ID, "count", len(generated))
	}
	return generated, nil
}

// RunAll generates due transactions for every active schedule. Used by the
// background timer; individual schedule failures do not stop the sweep.
func (s *Service) RunAll(ctx context.Context, asOf time.Time) (int, error) {
	active, err := s.store.ListActive(ctx, 500)
	if err != nil {
		metrics.ScheduleRunsTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	total := 0
	for _, sched := range active {
		generated, err := s.generate(ctx, sched, asOf)
		if err != nil {
			s.logger.Warn("schedule generation failed",
				"schedule", sched.ID, "error", err)
			continue
		}
		total += len(generated)
	}
	return total, nil
}
