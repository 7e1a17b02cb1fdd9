package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	apperrors "github.com/solvedrelay/solvedrelay/internal/errors"
)

// Check results.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse is the body of the live/ready/startup probes.
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker is implemented by components that can report their health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) error

// CheckHealth implements HealthChecker.
func (f HealthCheckerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// probe describes one health endpoint.
type probe struct {
	name      string
	timeout   time.Duration
	runChecks bool
	failure   string
}

var (
	aggregateProbe = probe{name: "", timeout: 5 * time.Second, runChecks: true, failure: "aggregate health check failed"}
	liveProbe      = probe{name: "live", timeout: 2 * time.Second, failure: "liveness probe failed"}
	readyProbe     = probe{name: "ready", timeout: 5 * time.Second, runChecks: true, failure: "readiness probe failed"}
	startupProbe   = probe{name: "startup", timeout: 3 * time.Second, runChecks: true, failure: "startup probe failed"}
)

// HealthManager runs registered checkers for the probe endpoints.
type HealthManager struct {
	mu        sync.RWMutex
	checkers  map[string]HealthChecker
	version   string
	startedAt time.Time
}

// NewHealthManager returns a manager reporting version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers:  make(map[string]HealthChecker),
		version:   version,
		startedAt: time.Now().UTC(),
	}
}

// RegisterChecker adds or replaces the checker registered under name.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	if checker == nil {
		return
	}
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// CheckerNames returns the registered checker names, sorted.
func (hm *HealthManager) CheckerNames() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every checker and returns per-check results and the overall status.
func (hm *HealthManager) Check(ctx context.Context) (string, map[string]string) {
	checks := hm.runHealthChecks(ctx)
	return hm.determineOverallStatus(checks), checks
}

func (hm *HealthManager) runHealthChecks(ctx context.Context) map[string]string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	checks := make(map[string]string, len(hm.checkers))
	for name, checker := range hm.checkers {
		if ctx.Err() != nil {
			checks[name] = StatusTimeout
			continue
		}
		if err := checker.CheckHealth(ctx); err != nil {
			checks[name] = StatusUnhealthy
		} else {
			checks[name] = StatusHealthy
		}
	}
	return checks
}

func (hm *HealthManager) determineOverallStatus(checks map[string]string) string {
	degraded := false
	for _, status := range checks {
		switch status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded, StatusTimeout:
			degraded = true
		}
	}
	if degraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// HealthHandler serves GET /health.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status, checks, ok := hm.evaluate(w, r, aggregateProbe)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   hm.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(hm.startedAt).Round(time.Second).String(),
		Checks:    checks,
	})
}

// LivenessHandler serves GET /health/live. It answers as long as the process
// can serve requests and does not run checkers.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, liveProbe)
}

// ReadinessHandler serves GET /health/ready.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, readyProbe)
}

// StartupHandler serves GET /health/startup.
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, startupProbe)
}

func (hm *HealthManager) serveProbe(w http.ResponseWriter, r *http.Request, p probe) {
	status, _, ok := hm.evaluate(w, r, p)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ProbeResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}

// evaluate runs p's checks and writes a 503 envelope when unhealthy.
func (hm *HealthManager) evaluate(w http.ResponseWriter, r *http.Request, p probe) (string, map[string]string, bool) {
	if hm == nil {
		respondWithError(w, r, healthEnvelope("health manager not initialized", p.name, "unknown", nil))
		return "", nil, false
	}
	if !p.runChecks {
		return StatusHealthy, nil, true
	}

	ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
	defer cancel()

	status, checks := hm.Check(ctx)
	if status == StatusUnhealthy {
		respondWithError(w, r, healthEnvelope(p.failure, p.name, status, checks))
		return status, checks, false
	}
	return status, checks, true
}

func healthEnvelope(message, probeName, status string, checks map[string]string) error {
	envelope := apperrors.NewServiceUnavailableError(message)

	details := map[string]interface{}{"status": status}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	if probeName != "" {
		details["probe"] = probeName
	}
	envelope = envelope.WithDetails(details)

	var unhealthy []string
	for name, result := range checks {
		if result != StatusHealthy {
			unhealthy = append(unhealthy, name)
		}
	}
	if len(unhealthy) > 0 {
		sort.Strings(unhealthy)
		envelope, _ = envelope.WithContext(map[string]interface{}{
			"unhealthy_checks": unhealthy,
		})
	}
	return envelope
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
