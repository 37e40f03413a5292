package offerletter

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyarc/platform/internal/access"
	"github.com/studyarc/platform/internal/auth"
	"github.com/studyarc/platform/internal/pagination"
	"github.com/studyarc/platform/internal/validation"
)

// Handler provides HTTP endpoints for the offer letter lifecycle.
type Handler struct {
	svc *Service
}

// NewHandler creates a new offer letter handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up offer letter routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/offer-letters", h.Create)
	r.GET("/offer-letters", h.List)
	r.GET("/offer-letters/:id", h.Get)
	r.POST("/offer-letters/:id/issue", h.action(ActionIssue))
	r.POST("/offer-letters/:id/accept", h.action(ActionAccept))
	r.POST("/offer-letters/:id/reject", h.action(ActionReject))
	r.POST("/offer-letters/:id/cancel", h.action(ActionCancel))
	r.POST("/offer-letters/:id/replace", h.Replace)
	r.POST("/offer-letters/:id/documents", h.AppendDocument)
}

// Create handles POST /v1/offer-letters.
func (h *Handler) Create(c *gin.Context) {
	caller, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "studentName and programName required"})
		return
	}
	// Tenant callers draft inside their own scope unless they say otherwise.
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

	o, err := h.svc.Create(c.Request.Context(), caller, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// List handles GET /v1/offer-letters?accountId=&agencyId=&status=&limit=&cursor=.
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
	limit := pagination.ClampQuery(c.Query("limit"))
	after, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": "cursor is malformed"})
		return
	}

	letters, next, err := h.svc.List(c.Request.Context(), caller, requested, Status(c.Query("status")), limit, after)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offerLetters": letters, "nextCursor": next})
}

// Get handles GET /v1/offer-letters/:id.
func (h *Handler) Get(c *gin.Context) {
	caller, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	o, err := h.svc.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// action builds a handler for one lifecycle action endpoint.
func (h *Handler) action(a Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := auth.CallerIdentity(c)
		if !ok {
			respondUnauthenticated(c)
			return
		}
		o, err := h.svc.Apply(c.Request.Context(), caller, c.Param("id"), a)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// Replace handles POST /v1/offer-letters/:id/replace.
func (h *Handler) Replace(c *gin.Context) {
	caller, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	// An empty body is a plain reissue; a present but malformed body is not.
	var in ReplaceInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "malformed body"})
			return
		}
	}
	succ, err := h.svc.Replace(c.Request.Context(), caller, c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, succ)
}

// AppendDocument handles POST /v1/offer-letters/:id/documents.
func (h *Handler) AppendDocument(c *gin.Context) {
	caller, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	var req struct {
		Name        string `json:"name" binding:"required"`
		URL         string `json:"url" binding:"required"`
		ContentType string `json:"contentType"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name and url required"})
		return
	}

	doc := Document{
		Name:        validation.SanitizeString(req.Name, 200),
		URL:         req.URL,
		ContentType: req.ContentType,
	}
	o, err := h.svc.AppendDocument(c.Request.Context(), caller, c.Param("id"), doc)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
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
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_transition", "message": err.Error()})
	case errors.Is(err, ErrImmutable):
		c.JSON(http.StatusConflict, gin.H{"error": "immutable", "message": err.Error()})
	case errors.Is(err, ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent_modification", "message": "retry the request"})
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrMissingExpiry):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "request failed"})
	}
}
