package schedule

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studyarc/platform/internal/access"
	"github.com/studyarc/platform/internal/auth"
	"github.com/studyarc/platform/internal/pagination"
	"github.com/studyarc/platform/internal/validation"
)

// Handler provides HTTP endpoints for recurring schedules.
type Handler struct {
	svc *Service
}

// NewHandler creates a new schedule handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up schedule routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/schedules", h.Create)
	r.GET("/schedules", h.List)
	r.GET("/schedules/:id", h.Get)
	r.POST("/schedules/:id/pause", h.setActive(false))
	r.POST("/schedules/:id/resume", h.setActive(true))
	r.POST("/schedules/:id/generate", h.Generate)
}

// Create handles POST /v1/schedules.
func (h *Handler) Create(c *gin.Context) {
	caller, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "description, cadence, startDate required"})
		return
	}
	if in.AccountID == "" {
		in.AccountID = caller.AccountID
	}
	if in.AgencyID == "" && caller.Portal == access.PortalAgency {
		in.AgencyID = caller.AgencyID
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if !validation.IsValidCurrency(in.Currency) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_currency", "message": "currency must be a 3-letter code"})
		return
	}

	sched, err := h.svc.Create(c.Request.Context(), caller, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sched)
}

// List handles GET /v1/schedules?accountId=&agencyId=&limit=&cursor=.
func (h *Handler) List(c *gin.Context) {
	caller, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	requested := access.ScopeFilter{
		AccountID: c.Query("accountId"),
		AgencyID:  c.Query("agencyId"),
	}
	after, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": "cursor is malformed"})
		return
	}
	schedules, next, err := h.svc.List(c.Request.Context(), caller, requested, pagination.ClampQuery(c.Query("limit")), after)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules, "nextCursor": next})
}

// Get handles GET /v1/schedules/:id.
func (h *Handler) Get(c *gin.Context) {
	caller, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	sched, err := h.svc.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

func (h *Handler) setActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := auth.CallerIdentity(c)
		if !ok {
			respondUnauthenticated(c)
			return
		}
		sched, err := h.svc.SetActive(c.Request.Context(), caller, c.Param("id"), active)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sched)
	}
}

// Generate handles POST /v1/schedules/:id/generate — an on-demand generation
// pass, also exercised by the background timer. asOf defaults to now.
func (h *Handler) Generate(c *gin.Context) {
	caller, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	asOf := time.Now()
	if raw := c.Query("asOf"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "asOf must be RFC 3339"})
			return
		}
		asOf = parsed
	}

	generated, err := h.svc.GenerateDue(c.Request.Context(), caller, c.Param("id"), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"generated": generated, "count": len(generated)})
}

// ---------- error mapping ----------

func respondUnauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "API key required"})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, access.ErrOutOfScope), errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "resource not found"})
	case errors.Is(err, access.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "operation not permitted"})
	case errors.Is(err, access.ErrInvalidHierarchy):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_hierarchy", "message": err.Error()})
	case errors.Is(err, ErrInvalidSchedule):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_schedule", "message": err.Error()})
	case errors.Is(err, ErrInactive):
		c.JSON(http.StatusConflict, gin.H{"error": "schedule_paused", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "request failed"})
	}
}
