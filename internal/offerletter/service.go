package offerletter

import (
	"context"
	"errors"
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

// casRetries bounds how often a transition is retried after losing a
// compare-and-swap race before giving up with ErrConflict.
const casRetries = 3

// Notifier pushes domain events to connected portal clients.
type Notifier interface {
	Publish(eventType realtime.EventType, accountID, agencyID string, data any)
}

// Service coordinates authorization, the pure state machine, and storage.
type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new offer letter service. notifier may be nil.
func NewService(store Store, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// CreateInput carries the fields a caller provides for a new offer letter.
type CreateInput struct {
	AccountID       string          `json:"accountId"`
	AgencyID        string          `json:"agencyId"`
	StudentID       string          `json:"studentId"`
	StudentName     string          `json:"studentName" binding:"required"`
	ProgramName     string          `json:"programName" binding:"required"`
	InstitutionName string          `json:"institutionName"`
	TuitionAmount   decimal.Decimal `json:"tuitionAmount"`
	Currency        string          `json:"currency"`
	ExpiryDate      *time.Time      `json:"expiryDate"`
}

// Create drafts a new offer letter inside the caller's scope.
func (s *Service) Create(ctx context.Context, caller access.Identity, in CreateInput) (*OfferLetter, error) {
	ctx, span := traces.StartSpan(ctx, "offerletter.Create", traces.AccountID(in.AccountID))
	defer span.End()

	target := access.ScopeFilter{AccountID: in.AccountID, AgencyID: in.AgencyID}
	if err := access.Authorize(caller, access.ResourceOfferLetter, access.OpCreate, target); err != nil {
		return nil, err
	}

	now := s.now()
	o := &OfferLetter{
		ID:              idgen.WithPrefix("ofl_"),
		AccountID:       in.AccountID,
		AgencyID:        in.AgencyID,
		StudentID:       in.StudentID,
		StudentName:     in.StudentName,
		ProgramName:     in.ProgramName,
		InstitutionName: in.InstitutionName,
		TuitionAmount:   in.TuitionAmount,
		Currency:        in.Currency,
		Status:          StatusDraft,
		Version:         1,
		ExpiryDate:      in.ExpiryDate,
		Documents:       []Document{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}

	logging.L(ctx).Info("offer letter drafted",
		"id", o.ID, "account", o.AccountID, "agency", o.AgencyID)
	s.publish(o)
	return o, nil
}

// Get loads one letter. The returned snapshot carries the effective status,
// so an issued letter past expiry reads as expired.
func (s *Service) Get(ctx context.Context, caller access.Identity, id string) (*OfferLetter, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(caller, access.ResourceOfferLetter, access.OpView, o.Scope()); err != nil {
		return nil, err
	}
	o.Status = o.EffectiveStatus(s.now())
	return o, nil
}

// List returns one page of letters visible to the caller, newest first,
// narrowed by the requested filter. The returned cursor resumes the walk;
// it is empty on the last page. Status filtering matches the stored status;
// expired presentation is applied afterwards.
func (s *Service) List(ctx context.Context, caller access.Identity, requested access.ScopeFilter, status Status, limit int, after *pagination.Cursor) ([]*OfferLetter, string, error) {
	scope, err := access.NarrowFilter(caller, requested)
	if err != nil {
		return nil, "", err
	}
	limit = pagination.Clamp(limit)
	letters, err := s.store.List(ctx, scope, status, limit+1, after)
	if err != nil {
		return nil, "", err
	}
	letters, next, _ := pagination.ComputePage(letters, limit, func(o *OfferLetter) (time.Time, string) {
		return o.CreatedAt, o.ID
	})
	now := s.now()
	for _, o := range letters {
		o.Status = o.EffectiveStatus(now)
	}
	return letters, next, nil
}

// Apply runs one lifecycle action against a letter. Lost races against
// concurrent writers are retried from a fresh snapshot a bounded number of
// times; persistent losers surface ErrConflict.
func (s *Service) Apply(ctx context.Context, caller access.Identity, id string, action Action) (*OfferLetter, error) {
	ctx, span := traces.StartSpan(ctx, "offerletter.Apply",
		traces.OfferLetterID(id), traces.Action(string(action)))
	defer span.End()

	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		o, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := access.Authorize(caller, access.ResourceOfferLetter, access.OpEdit, o.Scope()); err != nil {
			metrics.OfferLetterTransitionsTotal.WithLabelValues(string(action), "denied").Inc()
			return nil, err
		}

		now := s.now()
		next, err := Transition(o, action, now)
		if err != nil {
			metrics.OfferLetterTransitionsTotal.WithLabelValues(string(action), "rejected").Inc()
			return nil, err
		}

		if err := s.store.Update(ctx, next, o.UpdateSeq); err != nil {
			if errors.Is(err, ErrConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}

		metrics.OfferLetterTransitionsTotal.WithLabelValues(string(action), "ok").Inc()
		logging.L(ctx).Info("offer letter transition",
			"id", next.ID, "action", action, "from", o.Status, "to", next.Status)
		s.publish(next)
		return next, nil
	}
	metrics.OfferLetterTransitionsTotal.WithLabelValues(string(action), "conflict").Inc()
	return nil, lastErr
}

// ReplaceInput optionally overrides commercial terms on the successor.
type ReplaceInput struct {
	TuitionAmount *decimal.Decimal `json:"tuitionAmount"`
	ProgramName   *string          `json:"programName"`
	ExpiryDate    *time.Time       `json:"expiryDate"`
}

// Replace freezes an issued letter and creates its corrected successor at
// version+1. Both writes commit together.
func (s *Service) Replace(ctx context.Context, caller access.Identity, id string, in ReplaceInput) (*OfferLetter, error) {
	ctx, span := traces.StartSpan(ctx, "offerletter.Replace", traces.OfferLetterID(id))
	defer span.End()

	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		o, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := access.Authorize(caller, access.ResourceOfferLetter, access.OpEdit, o.Scope()); err != nil {
			metrics.OfferLetterTransitionsTotal.WithLabelValues(string(ActionReplace), "denied").Inc()
			return nil, err
		}

		now := s.now()
		frozen, succ, err := Replace(o, now)
		if err != nil {
			metrics.OfferLetterTransitionsTotal.WithLabelValues(string(ActionReplace), "rejected").Inc()
			return nil, err
		}
		if in.TuitionAmount != nil {
			succ.TuitionAmount = *in.TuitionAmount
		}
		if in.ProgramName != nil {
			succ.ProgramName = *in.ProgramName
		}
		if in.ExpiryDate != nil {
			succ.ExpiryDate = in.ExpiryDate
		}
		if err := succ.Validate(); err != nil {
			return nil, err
		}

		if err := s.store.Replace(ctx, frozen, o.UpdateSeq, succ); err != nil {
			if errors.Is(err, ErrConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}

		metrics.OfferLetterTransitionsTotal.WithLabelValues(string(ActionReplace), "ok").Inc()
		logging.L(ctx).Info("offer letter replaced",
			"predecessor", frozen.ID, "successor", succ.ID, "version", succ.Version)
		s.publish(frozen)
		s.publish(succ)
		return succ, nil
	}
	metrics.OfferLetterTransitionsTotal.WithLabelValues(string(ActionReplace), "conflict").Inc()
	return nil, lastErr
}

// AppendDocument attaches a document to a letter.
func (s *Service) AppendDocument(ctx context.Context, caller access.Identity, id string, doc Document) (*OfferLetter, error) {
	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		o, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := access.Authorize(caller, access.ResourceOfferLetter, access.OpEdit, o.Scope()); err != nil {
			return nil, err
		}

		next, err := AppendDocument(o, doc, s.now())
		if err != nil {
			return nil, err
		}
		if err := s.store.Update(ctx, next, o.UpdateSeq); err != nil {
			if errors.Is(err, ErrConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return next, nil
	}
	return nil, lastErr
}

func (s *Service) publish(o *OfferLetter) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(realtime.EventOfferLetter, o.AccountID, o.AgencyID, map[string]any{
		"id":      o.ID,
		"status":  o.Status,
		"version": o.Version,
	})
}
