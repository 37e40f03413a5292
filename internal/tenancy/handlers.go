package tenancy

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studyarc/platform/internal/access"
	"github.com/studyarc/platform/internal/auth"
	"github.com/studyarc/platform/internal/idgen"
	"github.com/studyarc/platform/internal/security"
	"github.com/studyarc/platform/internal/validation"
)

// Handler provides HTTP endpoints for tenant hierarchy management.
type Handler struct {
	store   Store
	authMgr *auth.Manager
}

// NewHandler creates a new tenancy handler.
func NewHandler(store Store, authMgr *auth.Manager) *Handler {
	return &Handler{store: store, authMgr: authMgr}
}

// RegisterRoutes sets up tenancy routes. All routes require auth; per-route
// authorization is decided by the capability evaluator.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/accounts", h.CreateAccount)
	r.GET("/accounts", h.ListAccounts)
	r.GET("/accounts/:id", h.GetAccount)
	r.PATCH("/accounts/:id", h.UpdateAccount)
	r.PUT("/accounts/:id/subscription", h.UpdateSubscription)
	r.DELETE("/accounts/:id", h.DeactivateAccount)
	r.POST("/accounts/:id/keys", h.CreateKey)

	r.POST("/agencies", h.CreateAgency)
	r.GET("/agencies", h.ListAgencies)
	r.GET("/agencies/:id", h.GetAgency)
	r.PATCH("/agencies/:id", h.UpdateAgency)
	r.DELETE("/agencies/:id", h.DeactivateAgency)

	r.POST("/users", h.CreateUser)
	r.GET("/users", h.ListUsers)
	r.GET("/users/:id", h.GetUser)
	r.PATCH("/users/:id", h.UpdateUser)
}

// ---------- Accounts ----------

// CreateAccount handles POST /v1/accounts (platform only).
func (h *Handler) CreateAccount(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	var req struct {
		Name         string           `json:"name" binding:"required"`
		ContactEmail string           `json:"contactEmail" binding:"required"`
		ContactPhone string           `json:"contactPhone"`
		Plan         SubscriptionPlan `json:"plan"`
		Timezone     string           `json:"timezone"`
		Currency     string           `json:"currency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name and contactEmail required"})
		return
	}

	if err := access.Authorize(id, access.ResourceAccount, access.OpCreate, access.ScopeFilter{}); err != nil {
		respondAccessError(c, err)
		return
	}

	if req.Plan == "" {
		req.Plan = PlanTrial
	}
	if !ValidPlan(req.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "unknown plan"})
		return
	}
	settings := DefaultSettings()
	if req.Timezone != "" {
		if !validation.IsValidTimezone(req.Timezone) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_timezone", "message": "unknown timezone"})
			return
		}
		settings.Timezone = req.Timezone
	}
	if req.Currency != "" {
		if !validation.IsValidCurrency(req.Currency) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_currency", "message": "currency must be a 3-letter code"})
			return
		}
		settings.Currency = req.Currency
	}

	now := time.Now()
	account := &Account{
		ID:           idgen.WithPrefix("acc_"),
		Name:         validation.SanitizeString(req.Name, 200),
		ContactEmail: validation.SanitizeString(req.ContactEmail, 320),
		ContactPhone: validation.SanitizeString(req.ContactPhone, 40),
		Subscription: DefaultSubscriptionForPlan(req.Plan),
		Billing:      AccountBilling{Cycle: CycleMonthly, Status: "current"},
		Settings:     settings,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if account.Subscription.Plan == PlanTrial {
		trialEnd := now.AddDate(0, 0, 30)
		account.Subscription.TrialEndsAt = &trialEnd
	}

	if err := h.store.CreateAccount(c.Request.Context(), account); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create account"})
		return
	}
	c.JSON(http.StatusCreated, account)
}

// GetAccount handles GET /v1/accounts/:id.
func (h *Handler) GetAccount(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	account, err := h.store.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if err := access.Authorize(id, access.ResourceAccount, access.OpView, account.Scope()); err != nil {
		respondAccessError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// ListAccounts handles GET /v1/accounts (platform only in practice: tenant
// callers see at most their own account).
func (h *Handler) ListAccounts(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	if !id.IsPlatform() {
		account, err := h.store.GetAccount(c.Request.Context(), id.AccountID)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": []*Account{account}})
		return
	}
	accounts, err := h.store.ListAccounts(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list accounts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// UpdateAccount handles PATCH /v1/accounts/:id — contact details and
// settings only. Subscription terms have their own platform-only endpoint.
func (h *Handler) UpdateAccount(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	var req struct {
		Name         *string `json:"name"`
		ContactEmail *string `json:"contactEmail"`
		ContactPhone *string `json:"contactPhone"`
		Timezone     *string `json:"timezone"`
		Currency     *string `json:"currency"`
		NotifyURL    *string `json:"notifyUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "malformed body"})
		return
	}

	account, err := h.store.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if err := access.Authorize(id, access.ResourceAccount, access.OpEdit, account.Scope()); err != nil {
		respondAccessError(c, err)
		return
	}

	if req.Name != nil {
		account.Name = validation.SanitizeString(*req.Name, 200)
	}
	if req.ContactEmail != nil {
		account.ContactEmail = validation.SanitizeString(*req.ContactEmail, 320)
	}
	if req.ContactPhone != nil {
		account.ContactPhone = validation.SanitizeString(*req.ContactPhone, 40)
	}
	if req.Timezone != nil {
		if !validation.IsValidTimezone(*req.Timezone) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_timezone", "message": "unknown timezone"})
			return
		}
		account.Settings.Timezone = *req.Timezone
	}
	if req.Currency != nil {
		if !validation.IsValidCurrency(*req.Currency) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_currency", "message": "currency must be a 3-letter code"})
			return
		}
		account.Settings.Currency = *req.Currency
	}
	if req.NotifyURL != nil {
		// Empty string clears the callback. Anything else must point at a
		// public endpoint; billing callbacks are server-side requests.
		if *req.NotifyURL != "" {
			if err := security.ValidateEndpointURL(*req.NotifyURL); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_notify_url", "message": err.Error()})
				return
			}
		}
		account.Settings.NotifyURL = *req.NotifyURL
	}
	account.UpdatedAt = time.Now()

	if err := h.store.UpdateAccount(c.Request.Context(), account); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// UpdateSubscription handles PUT /v1/accounts/:id/subscription (platform only).
func (h *Handler) UpdateSubscription(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	var req struct {
		Plan        SubscriptionPlan   `json:"plan" binding:"required"`
		Status      SubscriptionStatus `json:"status"`
		MaxUsers    *int               `json:"maxUsers"`
		MaxAgencies *int               `json:"maxAgencies"`
		AutoRenew   *bool              `json:"autoRenew"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "plan required"})
		return
	}
	if !ValidPlan(req.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "unknown plan"})
		return
	}

	account, err := h.store.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if err := access.Authorize(id, access.ResourceAccount, access.OpManageBilling, account.Scope()); err != nil {
		respondAccessError(c, err)
		return
	}

	sub := DefaultSubscriptionForPlan(req.Plan)
	if req.Status != "" {
		sub.Status = req.Status
	}
	if req.MaxUsers != nil {
		sub.MaxUsers = *req.MaxUsers
	}
	if req.MaxAgencies != nil {
		sub.MaxAgencies = *req.MaxAgencies
	}
	if req.AutoRenew != nil {
		sub.AutoRenew = *req.AutoRenew
	}
	account.Subscription = sub
	account.UpdatedAt = time.Now()

	if err := h.store.UpdateAccount(c.Request.Context(), account); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// DeactivateAccount handles DELETE /v1/accounts/:id (soft delete, platform only).
func (h *Handler) DeactivateAccount(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	account, err := h.store.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if err := access.Authorize(id, access.ResourceAccount, access.OpDelete, account.Scope()); err != nil {
		respondAccessError(c, err)
		return
	}

	account.IsActive = false
	account.UpdatedAt = time.Now()
	if err := h.store.UpdateAccount(c.Request.Context(), account); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// CreateKey handles POST /v1/accounts/:id/keys — issues an API key bound to
// an identity inside the account.
func (h *Handler) CreateKey(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	var req struct {
		Name     string        `json:"name" binding:"required"`
		Portal   access.Portal `json:"portal" binding:"required"`
		Role     access.Role   `json:"role" binding:"required"`
		AgencyID string        `json:"agencyId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name, portal, role required"})
		return
	}

	account, err := h.store.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if err := access.Authorize(id, access.ResourceUser, access.OpManageUsers, account.Scope()); err != nil {
		respondAccessError(c, err)
		return
	}

	keyIdentity := access.Identity{
		Portal:    req.Portal,
		Role:      req.Role,
		AccountID: account.ID,
		AgencyID:  req.AgencyID,
	}
	rawKey, keyInfo, err := h.authMgr.GenerateKey(c.Request.Context(), keyIdentity, validation.SanitizeString(req.Name, 200))
	if err != nil {
		if errors.Is(err, access.ErrInvalidHierarchy) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_hierarchy", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to create key"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"apiKey":  rawKey,
		"keyId":   keyInfo.ID,
		"warning": "Store this API key securely. It will not be shown again.",
	})
}

// ---------- Agencies ----------

// CreateAgency handles POST /v1/agencies.
func (h *Handler) CreateAgency(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	var req struct {
		AccountID              string `json:"accountId"`
		Name                   string `json:"name" binding:"required"`
		ContactEmail           string `json:"contactEmail"`
		CommissionSplitPercent int    `json:"commissionSplitPercent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "name required"})
		return
	}
	// Tenant callers create agencies under their own account.
	if req.AccountID == "" {
		req.AccountID = id.AccountID
	}
	if req.AccountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "accountId required"})
		return
	}

	target := access.ScopeFilter{AccountID: req.AccountID}
	if err := access.Authorize(id, access.ResourceAgency, access.OpCreate, target); err != nil {
		respondAccessError(c, err)
		return
	}

	account, err := h.store.GetAccount(c.Request.Context(), req.AccountID)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	count, err := h.store.CountAgencies(c.Request.Context(), account.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to check agency count"})
		return
	}
	if account.Subscription.MaxAgencies > 0 && count >= account.Subscription.MaxAgencies {
		c.JSON(http.StatusConflict, gin.H{"error": "plan_limit_reached", "message": ErrMaxAgencies.Error()})
		return
	}

	now := time.Now()
	agency := &Agency{
		ID:                     idgen.WithPrefix("agc_"),
		AccountID:              account.ID,
		Name:                   validation.SanitizeString(req.Name, 200),
		ContactEmail:           validation.SanitizeString(req.ContactEmail, 320),
		CommissionSplitPercent: req.CommissionSplitPercent,
		IsActive:               true,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := agency.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_agency", "message": err.Error()})
		return
	}
	if err := h.store.CreateAgency(c.Request.Context(), agency); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, agency)
}

// ListAgencies handles GET /v1/agencies?accountId=&agencyId=.
func (h *Handler) ListAgencies(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	requested := access.ScopeFilter{
		AccountID: c.Query("accountId"),
		AgencyID:  c.Query("agencyId"),
	}
	scope, err := access.NarrowFilter(id, requested)
	if err != nil {
		respondAccessError(c, err)
		return
	}
	agencies, err := h.store.ListAgencies(c.Request.Context(), scope, 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list agencies"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agencies": agencies})
}

// GetAgency handles GET /v1/agencies/:id.
func (h *Handler) GetAgency(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	agency, err := h.store.GetAgency(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if err := access.Authorize(id, access.ResourceAgency, access.OpView, agency.Scope()); err != nil {
		respondAccessError(c, err)
		return
	}
	c.JSON(http.StatusOK, agency)
}

// UpdateAgency handles PATCH /v1/agencies/:id.
func (h *Handler) UpdateAgency(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	var req struct {
		Name                   *string `json:"name"`
		ContactEmail           *string `json:"contactEmail"`
		CommissionSplitPercent *int    `json:"commissionSplitPercent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "malformed body"})
		return
	}

	agency, err := h.store.GetAgency(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if err := access.Authorize(id, access.ResourceAgency, access.OpEdit, agency.Scope()); err != nil {
		respondAccessError(c, err)
		return
	}

	if req.Name != nil {
		agency.Name = validation.SanitizeString(*req.Name, 200)
	}
	if req.ContactEmail != nil {
		agency.ContactEmail = validation.SanitizeString(*req.ContactEmail, 320)
	}
	if req.CommissionSplitPercent != nil {
		agency.CommissionSplitPercent = *req.CommissionSplitPercent
	}
	agency.UpdatedAt = time.Now()

	if err := agency.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_agency", "message": err.Error()})
		return
	}
	if err := h.store.UpdateAgency(c.Request.Context(), agency); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, agency)
}

// DeactivateAgency handles DELETE /v1/agencies/:id (soft delete).
func (h *Handler) DeactivateAgency(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	agency, err := h.store.GetAgency(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if err := access.Authorize(id, access.ResourceAgency, access.OpDelete, agency.Scope()); err != nil {
		respondAccessError(c, err)
		return
	}

	agency.IsActive = false
	agency.UpdatedAt = time.Now()
	if err := h.store.UpdateAgency(c.Request.Context(), agency); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, agency)
}

// ---------- Users ----------

// CreateUser handles POST /v1/users.
func (h *Handler) CreateUser(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	var req struct {
		Email     string        `json:"email" binding:"required"`
		Name      string        `json:"name" binding:"required"`
		Portal    access.Portal `json:"portal" binding:"required"`
		Role      access.Role   `json:"role" binding:"required"`
		AccountID string        `json:"accountId"`
		AgencyID  string        `json:"agencyId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "email, name, portal, role required"})
		return
	}
	if req.AccountID == "" {
		req.AccountID = id.AccountID
	}

	now := time.Now()
	user := &User{
		ID:        idgen.WithPrefix("usr_"),
		Email:     validation.SanitizeString(req.Email, 320),
		Name:      validation.SanitizeString(req.Name, 200),
		Portal:    req.Portal,
		Role:      req.Role,
		AccountID: req.AccountID,
		AgencyID:  req.AgencyID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_hierarchy", "message": err.Error()})
		return
	}
	if err := access.Authorize(id, access.ResourceUser, access.OpManageUsers, user.Scope()); err != nil {
		respondAccessError(c, err)
		return
	}

	if user.AccountID != "" {
		account, err := h.store.GetAccount(c.Request.Context(), user.AccountID)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		count, err := h.store.CountUsers(c.Request.Context(), account.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to check user count"})
			return
		}
		if account.Subscription.MaxUsers > 0 && count >= account.Subscription.MaxUsers {
			c.JSON(http.StatusConflict, gin.H{"error": "plan_limit_reached", "message": ErrMaxUsers.Error()})
			return
		}
	}

	if err := h.store.CreateUser(c.Request.Context(), user); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// ListUsers handles GET /v1/users?accountId=&agencyId=.
func (h *Handler) ListUsers(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	requested := access.ScopeFilter{
		AccountID: c.Query("accountId"),
		AgencyID:  c.Query("agencyId"),
	}
	scope, err := access.NarrowFilter(id, requested)
	if err != nil {
		respondAccessError(c, err)
		return
	}
	users, err := h.store.ListUsers(c.Request.Context(), scope, 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetUser handles GET /v1/users/:id.
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	user, err := h.store.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if err := access.Authorize(id, access.ResourceUser, access.OpView, user.Scope()); err != nil {
		respondAccessError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUser handles PATCH /v1/users/:id.
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := auth.CallerIdentity(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	var req struct {
		Name     *string      `json:"name"`
		Role     *access.Role `json:"role"`
		IsActive *bool        `json:"isActive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "malformed body"})
		return
	}

	user, err := h.store.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if err := access.Authorize(id, access.ResourceUser, access.OpManageUsers, user.Scope()); err != nil {
		respondAccessError(c, err)
		return
	}

	if req.Name != nil {
		user.Name = validation.SanitizeString(*req.Name, 200)
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	user.UpdatedAt = time.Now()

	if err := user.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_hierarchy", "message": err.Error()})
		return
	}
	if err := h.store.UpdateUser(c.Request.Context(), user); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ---------- error mapping ----------

func respondUnauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "API key required"})
}

// respondAccessError maps authorization failures. Out-of-scope is reported
// as not-found so the existence of other tenants' records never leaks.
func respondAccessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, access.ErrOutOfScope):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "resource not found"})
	case errors.Is(err, access.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "operation not permitted"})
	case errors.Is(err, access.ErrInvalidHierarchy):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_hierarchy", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "authorization failed"})
	}
}

func respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrAgencyNotFound), errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "resource not found"})
	case errors.Is(err, ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email_taken", "message": "email already registered"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "storage failure"})
	}
}
