package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyarc/platform/internal/access"
)

const (
	// contextKeyIdentity is the gin context key for the caller identity.
	contextKeyIdentity = "callerIdentity"
	// contextKeyAPIKey is the gin context key for the validated key record.
	contextKeyAPIKey = "callerAPIKey"
)

// Middleware extracts and validates the API key from the request and, if
// valid, stashes the caller identity in the gin context. It never rejects;
// RequireAuth does.
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if raw == "" {
			raw = c.GetHeader("X-API-Key")
		}
		if raw != "" {
			id, key, err := m.ValidateKey(c.Request.Context(), raw)
			if err == nil {
				c.Set(contextKeyIdentity, id)
				if key != nil {
					c.Set(contextKeyAPIKey, key)
				}
			}
		}
		c.Next()
	}
}

// RequireAuth rejects requests without an authenticated identity.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CallerIdentity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required. Include 'Authorization: Bearer sk_...' header.",
			})
			return
		}
		c.Next()
	}
}

// RequirePlatform rejects requests whose identity is not platform-scoped.
func RequirePlatform() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CallerIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized", "message": "API key required.",
			})
			return
		}
		if !id.IsPlatform() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "forbidden", "message": "platform operator access required",
			})
			return
		}
		c.Next()
	}
}

// SetIdentity attaches an already-validated identity to the request context.
// Used by handler tests and internal request fan-out.
func SetIdentity(c *gin.Context, id access.Identity) {
	c.Set(contextKeyIdentity, id)
}

// CallerIdentity returns the authenticated caller identity, if any.
func CallerIdentity(c *gin.Context) (access.Identity, bool) {
	v, ok := c.Get(contextKeyIdentity)
	if !ok {
		return access.Identity{}, false
	}
	id, ok := v.(access.Identity)
	return id, ok
}

// CallerKey returns the validated API key record, if the caller used one.
func CallerKey(c *gin.Context) (*APIKey, bool) {
	v, ok := c.Get(contextKeyAPIKey)
	if !ok {
		return nil, false
	}
	key, ok := v.(*APIKey)
	return key, ok
}
