package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyarc/platform/internal/access"
)

func platformIdentity() access.Identity {
	return access.Identity{Portal: access.PortalPlatform, Role: access.RoleAdmin}
}

func accountIdentity() access.Identity {
	return access.Identity{Portal: access.PortalAccount, Role: access.RoleManager, AccountID: "acc_1"}
}

func TestGenerateAndValidateKey(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewMemoryStore(), "")

	raw, key, err := mgr.GenerateKey(ctx, accountIdentity(), "ops key")
	require.NoError(t, err)
	assert.Contains(t, raw, "sk_")
	assert.NotEmpty(t, key.ID)

	id, got, err := mgr.ValidateKey(ctx, raw)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, accountIdentity(), id)
	assert.Equal(t, key.ID, got.ID)

	// Bearer prefix is stripped.
	id, _, err = mgr.ValidateKey(ctx, "Bearer "+raw)
	require.NoError(t, err)
	assert.Equal(t, "acc_1", id.AccountID)
}

func TestGenerateKeyRejectsInvalidIdentity(t *testing.T) {
	mgr := NewManager(NewMemoryStore(), "")
	_, _, err := mgr.GenerateKey(context.Background(),
		access.Identity{Portal: access.PortalAgency, Role: access.RoleAdmin, AccountID: "acc_1"}, "broken")
	assert.ErrorIs(t, err, access.ErrInvalidHierarchy)
}

func TestValidateKeyFailures(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewMemoryStore(), "")

	_, _, err := mgr.ValidateKey(ctx, "")
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, _, err = mgr.ValidateKey(ctx, "not-a-key")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	_, _, err = mgr.ValidateKey(ctx, "sk_deadbeef")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestRevokedKeyRejected(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewMemoryStore(), "")

	raw, key, err := mgr.GenerateKey(ctx, accountIdentity(), "to revoke")
	require.NoError(t, err)

	require.NoError(t, mgr.RevokeKey(ctx, key.ID))

	_, _, err = mgr.ValidateKey(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestExpiredKeyRejected(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mgr := NewManager(store, "")

	raw, key, err := mgr.GenerateKey(ctx, accountIdentity(), "expiring")
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	key.ExpiresAt = &past
	require.NoError(t, store.Update(ctx, key))

	_, _, err = mgr.ValidateKey(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestAdminSecretBootstrap(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewMemoryStore(), "topsecret")

	id, key, err := mgr.ValidateKey(ctx, "topsecret")
	require.NoError(t, err)
	assert.Nil(t, key)
	assert.Equal(t, platformIdentity(), id)
}

func TestMiddlewareSetsIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	mgr := NewManager(NewMemoryStore(), "")

	raw, _, err := mgr.GenerateKey(ctx, accountIdentity(), "mw key")
	require.NoError(t, err)

	r := gin.New()
	r.Use(Middleware(mgr))
	r.GET("/whoami", RequireAuth(), func(c *gin.Context) {
		id, _ := CallerIdentity(c)
		c.JSON(http.StatusOK, id)
	})

	// Authenticated request.
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Missing key.
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/whoami", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequirePlatform(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	mgr := NewManager(NewMemoryStore(), "bootstrap")

	raw, _, err := mgr.GenerateKey(ctx, accountIdentity(), "tenant key")
	require.NoError(t, err)

	r := gin.New()
	r.Use(Middleware(mgr))
	r.POST("/admin", RequirePlatform(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// Tenant key is rejected.
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Bootstrap secret passes.
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/admin", nil)
	req.Header.Set("Authorization", "Bearer bootstrap")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
