package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func testLimiter(burst int) *Limiter {
	l := New(Config{RequestsPerMinute: 60, BurstSize: burst, CleanupInterval: time.Minute})
	return l
}

func TestAllowWithinBurst(t *testing.T) {
	l := testLimiter(3)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("key:a"), "request %d should pass", i)
	}
	assert.False(t, l.Allow("key:a"), "burst exhausted")
}

func TestIndependentBuckets(t *testing.T) {
	l := testLimiter(1)
	defer l.Stop()

	assert.True(t, l.Allow("key:a"))
	assert.False(t, l.Allow("key:a"))
	assert.True(t, l.Allow("key:b"), "other keys have their own bucket")
}

func TestMiddlewareBucketsByAPIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := testLimiter(1)
	defer l.Stop()

	router := gin.New()
	router.Use(l.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, do("sk_first"))
	assert.Equal(t, http.StatusTooManyRequests, do("sk_first"))
	assert.Equal(t, http.StatusNoContent, do("sk_second"), "separate key, separate bucket")
}
