package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Health status values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Pinger is satisfied by *pgxpool.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports token store and gateway health
type HealthChecker struct {
	db           Pinger
	circuitState func() string
	ready        atomic.Bool
	now          func() time.Time
}

// NewHealthChecker creates a HealthChecker. db may be nil when tokens are
// kept in memory; circuitState may be nil when no gateway is wired.
func NewHealthChecker(db Pinger, circuitState func() string) *HealthChecker {
	h := &HealthChecker{
		db:           db,
		circuitState: circuitState,
		now:          time.Now,
	}
	h.ready.Store(true)
	return h
}

// SetReady flips readiness; shutdown sets it false first so the
// load balancer drains before servers stop
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Check performs health checks and returns the status.
// A failed database makes the service unhealthy; an open gateway circuit
// only degrades it, since the donation form still renders.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	checks := make(map[string]string)
	overallStatus := StatusHealthy

	if h.db != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := h.db.Ping(dbCtx); err != nil {
			checks["database"] = StatusUnhealthy + ": " + err.Error()
			overallStatus = StatusUnhealthy
		} else {
			checks["database"] = StatusHealthy
		}
	} else {
		checks["database"] = "not configured"
	}

	if h.circuitState != nil {
		state := h.circuitState()
		checks["gateway_circuit"] = state
		if state != "closed" && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}

	return HealthStatus{
		Status:    overallStatus,
		Timestamp: h.now().UTC(),
		Checks:    checks,
	}
}

// HealthHandler serves /health
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(status)
	}
}

// ReadyHandler serves /ready
func (h *HealthChecker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() || h.Check(r.Context()).Status == StatusUnhealthy {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}
