package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/solvedrelay/solvedrelay/internal/metrics"
	"github.com/solvedrelay/solvedrelay/internal/observability"
)

// Standard rate-limit response headers (IETF draft, as sent by
// express-rate-limit with standardHeaders enabled).
const (
	HeaderLimit      = "RateLimit-Limit"
	HeaderRemaining  = "RateLimit-Remaining"
	HeaderReset      = "RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// DefaultStatsTimeout bounds how long a gated request waits on the stats sink.
const DefaultStatsTimeout = 250 * time.Millisecond

// KeyFunc extracts the caller identity from a request.
type KeyFunc func(r *http.Request) string

// RejectFunc writes the response for a rejected request.
type RejectFunc func(w http.ResponseWriter, r *http.Request, d Decision)

// GateOptions configures Gate.
type GateOptions struct {
	Limiter *Limiter

	// KeyFn defaults to RemoteAddrKey.
	KeyFn KeyFunc

	// OnReject defaults to a plain-text 429.
	OnReject RejectFunc

	// Stats, when set, receives every decision. Failures are logged and ignored.
	Stats StatsRecorder

	// StatsTimeout bounds each Stats.Record call. Defaults to DefaultStatsTimeout.
	StatsTimeout time.Duration

	// DisableHeaders suppresses the RateLimit-* headers.
	DisableHeaders bool
}

// RemoteAddrKey identifies callers by the host part of RemoteAddr. When the
// server trusts a proxy, chi's RealIP middleware has already rewritten
// RemoteAddr from the forwarding headers.
func RemoteAddrKey(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}
	return "unknown"
}

// Gate returns middleware that admits at most Limiter.Max requests per
// window per caller. Limiter errors fail open.
func Gate(opts GateOptions) func(http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = RemoteAddrKey
	}
	if opts.StatsTimeout <= 0 {
		opts.StatsTimeout = DefaultStatsTimeout
	}
	if opts.OnReject == nil {
		opts.OnReject = func(w http.ResponseWriter, r *http.Request, d Decision) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			decision, err := opts.Limiter.Take(r.Context(), key)
			if err != nil {
				if observability.ServerLogger != nil {
					observability.ServerLogger.Warn("Rate limiter unavailable, admitting request",
						zap.String("path", r.URL.Path),
						zap.Error(err))
				}
				next.ServeHTTP(w, r)
				return
			}

			metrics.RecordRateLimitDecision(decision.Allowed)
			recordStats(r, opts.Stats, opts.StatsTimeout, key, decision.Allowed)

			if !opts.DisableHeaders {
				writeHeaders(w.Header(), decision)
			}

			if !decision.Allowed {
				w.Header().Set(HeaderRetryAfter, strconv.Itoa(ceilSeconds(decision.RetryAfter)))
				opts.OnReject(w, r, decision)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeHeaders(h http.Header, d Decision) {
	h.Set(HeaderLimit, strconv.Itoa(d.Limit))
	h.Set(HeaderRemaining, strconv.Itoa(d.Remaining))
	h.Set(HeaderReset, strconv.Itoa(ceilSeconds(d.RetryAfter)))
}

func recordStats(r *http.Request, stats StatsRecorder, timeout time.Duration, key string, allowed bool) {
	if stats == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	err := stats.Record(ctx, StatsEvent{
		Key:     key,
		Allowed: allowed,
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      time.Now().UTC(),
	})
	if err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Debug("Failed to record rate limit stats", zap.Error(err))
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
