package billing

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/studyarc/platform/internal/access"
	"github.com/studyarc/platform/internal/auth"
	"github.com/studyarc/platform/internal/pagination"
	"github.com/studyarc/platform/internal/validation"
)

// Handler provides HTTP endpoints for billing transactions.
type Handler struct {
	svc *Service
}

// NewHandler creates a new billing handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up billing routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/transactions", h.Create)
	r.GET("/transactions", h.List)
	r.GET("/transactions/:id", h.Get)
	r.POST("/transactions/:id/submit", h.action(ActionSubmit))
	r.POST("/transactions/:id/claim", h.action(ActionClaim))
	r.POST("/transactions/:id/approve", h.action(ActionApprove))
	r.POST("/transactions/:id/dispute", h.Dispute)
	r.POST("/transactions/:id/resolve", h.Resolve)
	r.POST("/transactions/:id/reconcile", h.action(ActionReconcile))
	r.POST("/transactions/:id/cancel", h.action(ActionCancel))
	r.POST("/transactions/:id/process", h.action(ActionProcess))
}

// Create handles POST /v1/transactions.
func (h *Handler) Create(c *gin.Context) {
	caller, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "description required"})
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

	t, err := h.svc.Create(c.Request.Context(), caller, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// List handles GET /v1/transactions?accountId=&agencyId=&status=&overdue=true&limit=&cursor=.
func (h *Handler) List(c *gin.Context) {
	caller, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	after, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": "cursor is malformed"})
		return
	}
	overdue, _ := strconv.ParseBool(c.Query("overdue"))
	f := ListFilter{
		Scope: access.ScopeFilter{
			AccountID: c.Query("accountId"),
			AgencyID:  c.Query("agencyId"),
		},
		Status:  Status(c.Query("status")),
		Overdue: overdue,
		Limit:   pagination.ClampQuery(c.Query("limit")),
		After:   after,
	}

	txns, next, err := h.svc.List(c.Request.Context(), caller, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns, "nextCursor": next})
}

// Get handles GET /v1/transactions/:id.
func (h *Handler) Get(c *gin.Context) {
	caller, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	t, err := h.svc.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// action builds a handler for a lifecycle action carrying no body fields
// beyond the acting user.
func (h *Handler) action(a Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := auth.CallerIdentity(c)
		if !ok {
			respondUnauthenticated(c)
			return
		}
		in := TransitionInput{By: actingUser(c)}
		t, err := h.svc.Apply(c.Request.Context(), caller, c.Param("id"), a, in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// Dispute handles POST /v1/transactions/:id/dispute.
func (h *Handler) Dispute(c *gin.Context) {
	caller, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "reason required"})
		return
	}
	in := TransitionInput{By: actingUser(c), DisputeReason: validation.SanitizeString(req.Reason, 2000)}
	t, err := h.svc.Apply(c.Request.Context(), caller, c.Param("id"), ActionDispute, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Resolve handles POST /v1/transactions/:id/resolve.
func (h *Handler) Resolve(c *gin.Context) {
	caller, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	var req struct {
		Notes string `json:"notes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "notes required"})
		return
	}
	in := TransitionInput{By: actingUser(c), ResolutionNotes: validation.SanitizeString(req.Notes, 2000)}
	t, err := h.svc.Apply(c.Request.Context(), caller, c.Param("id"), ActionResolve, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func actingUser(c *gin.Context) string {
	if key, ok := auth.CallerKey(c); ok && key != nil {
		if key.UserID != "" {
			return key.UserID
		}
		return key.ID
	}
	return "platform"
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
	case errors.Is(err, ErrImmutable):
		c.JSON(http.StatusConflict, gin.H{"error": "immutable", "message": err.Error()})
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition", "message": err.Error()})
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent_modification", "message": "retry the request"})
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrMissingDisputeReason),
		errors.Is(err, ErrMissingResolutionNotes):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "request failed"})
	}
}
