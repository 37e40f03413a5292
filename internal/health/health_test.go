package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAllAggregates(t *testing.T) {
	r := NewRegistry()
	r.Register("db", func(context.Context) Status {
		return Status{Name: "db", Healthy: true}
	})
	r.Register("hub", func(context.Context) Status {
		return Status{Name: "hub", Healthy: false, Detail: "stopped"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	assert.False(t, healthy)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Healthy)
	assert.Equal(t, "stopped", statuses[1].Detail)
}

func TestCheckAllEmptyRegistryIsHealthy(t *testing.T) {
	healthy, statuses := NewRegistry().CheckAll(context.Background())
	assert.True(t, healthy)
	assert.Empty(t, statuses)
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestPingProbe(t *testing.T) {
	ok := Ping("db", fakePinger{})(context.Background())
	assert.True(t, ok.Healthy)

	down := Ping("db", fakePinger{err: errors.New("connection refused")})(context.Background())
	assert.False(t, down.Healthy)
	assert.Contains(t, down.Detail, "connection refused")
}

func TestReadinessHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := NewRegistry()
	up := true
	reg.Register("hub", Always("hub", func() bool { return up }))

	router := gin.New()
	router.GET("/readyz", reg.ReadinessHandler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	up = false
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
