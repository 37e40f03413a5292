package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/studyarc/platform/internal/access"
	"github.com/studyarc/platform/internal/idgen"
	"github.com/studyarc/platform/internal/logging"
	"github.com/studyarc/platform/internal/metrics"
	"github.com/studyarc/platform/internal/pagination"
	"github.com/studyarc/platform/internal/realtime"
	"github.com/studyarc/platform/internal/traces"
)

// casRetries bounds transition retries after losing a compare-and-swap race.
const casRetries = 3

// Notifier pushes domain events to connected portal clients.
type Notifier interface {
	Publish(eventType realtime.EventType, accountID, agencyID string, data any)
}

// Service coordinates authorization, the transaction state machine, and storage.
type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new billing service. notifier may be nil.
func NewService(store Store, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// CreateInput carries the fields a caller provides for a new transaction.
type CreateInput struct {
	AccountID     string          `json:"accountId"`
	AgencyID      string          `json:"agencyId"`
	OfferLetterID string          `json:"offerLetterId"`
	Description   string          `json:"description" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	DueDate       *time.Time      `json:"dueDate"`
	// Draft holds the transaction in created status until an explicit
	// submit; the default enters the lifecycle at pending directly.
	Draft bool `json:"draft"`
}

// Create opens a new transaction inside the caller's scope, at pending
// status or parked as a draft when requested.
func (s *Service) Create(ctx context.Context, caller access.Identity, in CreateInput) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "billing.Create", traces.AccountID(in.AccountID))
	defer span.End()

	target := access.ScopeFilter{AccountID: in.AccountID, AgencyID: in.AgencyID}
	if err := access.Authorize(caller, access.ResourceTransaction, access.OpCreate, target); err != nil {
		return nil, err
	}

	status := StatusPending
	if in.Draft {
		status = StatusCreated
	}

	now := s.now()
	t := &Transaction{
		ID:            idgen.WithPrefix("txn_"),
		AccountID:     in.AccountID,
		AgencyID:      in.AgencyID,
		OfferLetterID: in.OfferLetterID,
		Description:   in.Description,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Status:        status,
		DueDate:       in.DueDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}

	logging.L(ctx).Info("billing transaction created",
		"id", t.ID, "account", t.AccountID, "amount", t.Amount.String())
	s.publish(t)
	return t, nil
}

// Get loads one transaction.
func (s *Service) Get(ctx context.Context, caller access.Identity, id string) (*Transaction, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(caller, access.ResourceTransaction, access.OpView, t.Scope()); err != nil {
		return nil, err
	}
	return t, nil
}

// ListFilter narrows List beyond the caller's scope.
type ListFilter struct {
	Scope   access.ScopeFilter
	Status  Status
	Overdue bool // keep only transactions past due at read time
	Limit   int
	After   *pagination.Cursor
}

// List returns one page of transactions visible to the caller, newest
// first. The returned cursor resumes the walk and is empty on the last
// page. The overdue filter is evaluated against the clock at call time,
// never against stored state; a page may come back short when it drops
// rows, but the cursor still advances past everything inspected.
func (s *Service) List(ctx context.Context, caller access.Identity, f ListFilter) ([]*Transaction, string, error) {
	scope, err := access.NarrowFilter(caller, f.Scope)
	if err != nil {
		return nil, "", err
	}
	limit := pagination.Clamp(f.Limit)
	txns, err := s.store.List(ctx, scope, f.Status, limit+1, f.After)
	if err != nil {
		return nil, "", err
	}
	txns, next, _ := pagination.ComputePage(txns, limit, func(t *Transaction) (time.Time, string) {
		return t.CreatedAt, t.ID
	})
	if !f.Overdue {
		return txns, next, nil
	}
	now := s.now()
	out := txns[:0]
	for _, t := range txns {
		if t.Overdue(now) {
			out = append(out, t)
		}
	}
	return out, next, nil
}

// Apply runs one lifecycle action. The processing override is platform-only;
// every other action needs edit capability inside scope. Lost races retry
// from a fresh snapshot up to casRetries times.
func (s *Service) Apply(ctx context.Context, caller access.Identity, id string, action Action, in TransitionInput) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "billing.Apply",
		traces.TransactionID(id), traces.Action(string(action)))
	defer span.End()

	if action == ActionProcess && !caller.IsPlatform() {
		metrics.BillingTransitionsTotal.WithLabelValues(string(action), "denied").Inc()
		return nil, fmt.Errorf("%w: processing is a platform override", access.ErrForbidden)
	}

	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		t, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := access.Authorize(caller, access.ResourceTransaction, access.OpEdit, t.Scope()); err != nil {
			metrics.BillingTransitionsTotal.WithLabelValues(string(action), "denied").Inc()
			return nil, err
		}

		now := s.now()
		next, err := Transition(t, action, in, now)
		if err != nil {
			metrics.BillingTransitionsTotal.WithLabelValues(string(action), "rejected").Inc()
			return nil, err
		}

		if err := s.store.Update(ctx, next, t.UpdateSeq); err != nil {
			if errors.Is(err, ErrConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}

		metrics.BillingTransitionsTotal.WithLabelValues(string(action), "ok").Inc()
		logging.L(ctx).Info("billing transition",
			"id", next.ID, "action", action, "from", t.Status, "to", next.Status)
		s.publish(next)
		return next, nil
	}
	metrics.BillingTransitionsTotal.WithLabelValues(string(action), "conflict").Inc()
	return nil, lastErr
}

func (s *Service) publish(t *Transaction) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(realtime.EventTransaction, t.AccountID, t.AgencyID, map[string]any{
		"id":     t.ID,
		"status": t.Status,
		"amount": t.Amount.String(),
	})
}
