package metrics

import (
	"time"

	"github.com/solvedrelay/solvedrelay/internal/observability"
)

// Relay metric names.
const (
	UpstreamRequestsTotal   = "gfg_upstream_requests_total"
	UpstreamRequestDuration = "gfg_upstream_request_duration_ms"
	SlugsReturned           = "gfg_slugs_returned"
	RateLimitDecisionsTotal = "ratelimit_decisions_total"
	RateLimitTrackedKeys    = "ratelimit_tracked_keys"
	ServerStartTime         = "app_server_start_time_seconds"
)

// Upstream call outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailure     = "failure"
)

// RecordUpstreamCall records one call to the GFG submissions endpoint.
func RecordUpstreamCall(outcome string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		UpstreamRequestsTotal,
		1,
		map[string]string{"outcome": outcome},
	)
	_ = observability.TelemetrySystem.Histogram(
		UpstreamRequestDuration,
		duration,
		map[string]string{"outcome": outcome},
	)
}

// RecordSlugsReturned records the size of a successful flattened result.
func RecordSlugsReturned(count int) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Gauge(SlugsReturned, float64(count), nil)
}

// RecordRateLimitDecision records an allow/deny decision of the route gate.
// The caller key is deliberately not a label.
func RecordRateLimitDecision(allowed bool) {
	if observability.TelemetrySystem == nil {
		return
	}

	decision := "allowed"
	if !allowed {
		decision = "denied"
	}
	_ = observability.TelemetrySystem.Counter(
		RateLimitDecisionsTotal,
		1,
		map[string]string{"decision": decision},
	)
}

// SetRateLimitTrackedKeys records how many callers the limiter is tracking.
func SetRateLimitTrackedKeys(count int) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Gauge(RateLimitTrackedKeys, float64(count), nil)
}

// SetServerStartTime records the server start time (Unix seconds).
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
}
