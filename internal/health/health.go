// Package health aggregates named subsystem probes for the readiness
// endpoint. Liveness is unconditional; readiness fails when any registered
// probe does (database gone, realtime hub stopped).
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Status represents the health of a single subsystem.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Probe checks the health of a subsystem.
type Probe func(ctx context.Context) Status

// Registry holds named probes and runs them on demand.
type Registry struct {
	mu     sync.RWMutex
	probes []namedProbe
}

type namedProbe struct {
	name  string
	check Probe
}

// NewRegistry creates a new probe registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named probe.
func (r *Registry) Register(name string, check Probe) {
	r.mu.Lock()
	r.probes = append(r.probes, namedProbe{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs every registered probe and returns the aggregate plus the
// individual results.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	probes := make([]namedProbe, len(r.probes))
	copy(probes, r.probes)
	r.mu.RUnlock()

	healthy = true
	statuses = make([]Status, len(probes))
	for i, p := range probes {
		statuses[i] = p.check(ctx)
		if !statuses[i].Healthy {
			healthy = false
		}
	}
	return healthy, statuses
}

// LivenessHandler always reports ok while the process is serving.
func LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// ReadinessHandler runs all probes with a short deadline and reports 503
// when any subsystem is down.
func (r *Registry) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		healthy, statuses := r.CheckAll(ctx)
		code := http.StatusOK
		state := "ready"
		if !healthy {
			code = http.StatusServiceUnavailable
			state = "degraded"
		}
		c.JSON(code, gin.H{"status": state, "checks": statuses})
	}
}

// Ping adapts anything with a PingContext method, like *sql.DB, into a probe.
func Ping(name string, pinger interface {
	PingContext(ctx context.Context) error
}) Probe {
	return func(ctx context.Context) Status {
		if err := pinger.PingContext(ctx); err != nil {
			return Status{Name: name, Healthy: false, Detail: err.Error()}
		}
		return Status{Name: name, Healthy: true}
	}
}

// Always builds a probe with a fixed result, for subsystems whose liveness
// is tracked by a flag rather than a round trip.
func Always(name string, up func() bool) Probe {
	return func(context.Context) Status {
		ok := up()
		s := Status{Name: name, Healthy: ok}
		if !ok {
			s.Detail = "not running"
		}
		return s
	}
}
