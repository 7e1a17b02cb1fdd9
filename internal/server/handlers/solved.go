package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/solvedrelay/solvedrelay/internal/gfg"
	"github.com/solvedrelay/solvedrelay/internal/metrics"
	"github.com/solvedrelay/solvedrelay/internal/observability"
	"github.com/solvedrelay/solvedrelay/internal/ratelimit"
	"github.com/solvedrelay/solvedrelay/internal/server/middleware"
)

// Client-facing messages of the solved-problems route.
const (
	MsgUsernameRequired    = "username is required"
	MsgInvalidBody         = "invalid request body"
	MsgTooManyRequests     = "Too many requests. Please wait before refreshing again."
	MsgUpstreamRateLimited = "GFG rate limit reached. Try again later."
	MsgUpstreamFailed      = "GFG fetch failed"
)

const maxRequestBodyBytes = 1 << 20

// SolvedFetcher returns the solved slugs for a query.
type SolvedFetcher interface {
	FetchSolved(ctx context.Context, q gfg.Query) ([]string, error)
}

// SolvedRequest is the body of POST /api/gfg/solved.
type SolvedRequest struct {
	Handle string `json:"handle"`
	Year   string `json:"year"`
	Month  string `json:"month"`
}

// SolvedResponse is the success body.
type SolvedResponse struct {
	Success bool     `json:"success"`
	Slugs   []string `json:"slugs"`
}

// FailureResponse is the body of 429 and 500 responses.
type FailureResponse struct {
	Success           bool   `json:"success"`
	Error             string `json:"error"`
	RetryAfterMinutes *int   `json:"retryAfterMinutes,omitempty"`
}

// ValidationResponse is the body of 400 responses. It has no success field.
type ValidationResponse struct {
	Error string `json:"error"`
}

// SolvedHandler serves POST /api/gfg/solved.
type SolvedHandler struct {
	Fetcher SolvedFetcher
}

// NewSolvedHandler returns a handler calling fetcher once per request.
func NewSolvedHandler(fetcher SolvedFetcher) *SolvedHandler {
	return &SolvedHandler{Fetcher: fetcher}
}

func (h *SolvedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSolvedRequest(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, FailureResponse{Error: MsgInvalidBody})
		return
	}
	if req.Handle == "" {
		writeJSON(w, http.StatusBadRequest, ValidationResponse{Error: MsgUsernameRequired})
		return
	}

	start := time.Now()
	slugs, err := h.Fetcher.FetchSolved(r.Context(), gfg.Query{
		Handle: req.Handle,
		Year:   req.Year,
		Month:  req.Month,
	})
	duration := time.Since(start)

	switch {
	case err == nil:
		if slugs == nil {
			slugs = []string{}
		}
		metrics.RecordUpstreamCall(metrics.OutcomeSuccess, duration)
		metrics.RecordSlugsReturned(len(slugs))
		writeJSON(w, http.StatusOK, SolvedResponse{Success: true, Slugs: slugs})

	case gfg.IsRateLimited(err):
		metrics.RecordUpstreamCall(metrics.OutcomeRateLimited, duration)
		if observability.ServerLogger != nil {
			observability.ServerLogger.Warn("GFG rate limit reached",
				zap.String("handle", req.Handle),
				zap.Duration("retry_after", upstreamRetryAfter(err)),
				zap.String("requestID", middleware.GetRequestID(r.Context())))
		}
		writeJSON(w, http.StatusTooManyRequests, FailureResponse{Error: MsgUpstreamRateLimited})

	default:
		metrics.RecordUpstreamCall(metrics.OutcomeFailure, duration)
		if observability.ServerLogger != nil {
			observability.ServerLogger.Error("GFG API error",
				zap.Error(err),
				zap.String("handle", req.Handle),
				zap.Duration("duration", duration),
				zap.String("requestID", middleware.GetRequestID(r.Context())))
		}
		writeJSON(w, http.StatusInternalServerError, FailureResponse{Error: MsgUpstreamFailed})
	}
}

// RateLimitExceeded renders the local 429 for a rejected gate decision.
func RateLimitExceeded(windowMinutes int) ratelimit.RejectFunc {
	return func(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
		minutes := windowMinutes
		writeJSON(w, http.StatusTooManyRequests, FailureResponse{
			Error:             MsgTooManyRequests,
			RetryAfterMinutes: &minutes,
		})
	}
}

// decodeSolvedRequest treats an empty body as {}.
func decodeSolvedRequest(w http.ResponseWriter, r *http.Request) (SolvedRequest, error) {
	var req SolvedRequest
	if r.Body == nil {
		return req, nil
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return SolvedRequest{}, nil
		}
		return SolvedRequest{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return SolvedRequest{}, errors.New("unexpected data after request body")
	}
	return req, nil
}

func upstreamRetryAfter(err error) time.Duration {
	var upstreamErr *gfg.UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.RetryAfter
	}
	return 0
}
