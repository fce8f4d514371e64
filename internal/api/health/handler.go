package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"marketscanner/pkg/logger"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// Check probes one dependency; nil means healthy
type Check func(ctx context.Context) error

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	checks      map[string]Check
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a health handler over named dependency checks, e.g.
// {"redis": redisClient.Health}. A nil checks map means no dependencies.
func New(log *logger.Logger, checks map[string]Check, serviceName, version string) *Handler {
	if checks == nil {
		checks = map[string]Check{}
	}
	return &Handler{
		log:         log,
		checks:      checks,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if service is running
// Used by Kubernetes liveness probe
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness fails unless every dependency is healthy
// Used by Kubernetes readiness probe
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks, healthy := h.runChecks(ctx)
	status := h.status(checks)

	code := http.StatusOK
	if healthy < len(checks) {
		status.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", checks)
	}

	writeJSON(w, code, status)
}

// HandleHealth reports every dependency. Partial failure is degraded but
// still 200; only a total failure is 503.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks, healthy := h.runChecks(ctx)
	status := h.status(checks)

	code := http.StatusOK
	switch {
	case len(checks) > 0 && healthy == 0:
		status.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
	case healthy < len(checks):
		status.Status = statusDegraded
	}

	writeJSON(w, code, status)
}

func (h *Handler) status(checks map[string]ComponentHealth) HealthStatus {
	return HealthStatus{
		Status:    statusHealthy,
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}
}

// runChecks runs checks in name order and counts the healthy ones
func (h *Handler) runChecks(ctx context.Context) (map[string]ComponentHealth, int) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]ComponentHealth, len(names))
	healthy := 0
	for _, name := range names {
		start := time.Now()
		err := h.checks[name](ctx)
		elapsed := time.Since(start)

		if err != nil {
			h.log.Warnw("Health check failed", "component", name, "error", err, "elapsed", elapsed)
			out[name] = ComponentHealth{Status: statusUnhealthy, ResponseTime: elapsed.String(), Error: err.Error()}
			continue
		}

		out[name] = ComponentHealth{Status: statusHealthy, ResponseTime: elapsed.String()}
		healthy++
	}

	return out, healthy
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
