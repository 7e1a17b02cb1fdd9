// Package gfg talks to the GeeksforGeeks practice API submissions endpoint.
package gfg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultURL is the public submissions endpoint.
const DefaultURL = "https://practiceapi.geeksforgeeks.org/api/v1/user/problems/submissions/"

// DefaultTimeout bounds a single upstream call when Client.Timeout is unset.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of an upstream body is read.
const maxBodyBytes = 8 << 20

// ErrUpstreamRateLimited reports that the submissions endpoint answered 429.
var ErrUpstreamRateLimited = errors.New("gfg rate limited")

// UpstreamError describes a failed upstream call.
type UpstreamError struct {
	// StatusCode is 0 when no response was received.
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gfg upstream status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gfg upstream: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err came from an upstream 429.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrUpstreamRateLimited)
}

// Query selects whose submissions to fetch. Year and Month are passed through
// verbatim; empty means "all".
type Query struct {
	Handle string `json:"handle"`
	Year   string `json:"year"`
	Month  string `json:"month"`
}

type submissionsRequest struct {
	Handle      string `json:"handle"`
	Year        string `json:"year"`
	Month       string `json:"month"`
	RequestType string `json:"requestType"`
}

// SubmissionsResponse is the part of the upstream body the relay reads.
type SubmissionsResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

// Client calls the submissions endpoint. The zero value uses DefaultURL,
// DefaultTimeout and http.DefaultClient's transport.
type Client struct {
	URL        string
	HTTPClient *http.Client
	Timeout    time.Duration

	// Pacer, when set, is waited on before every call.
	Pacer *rate.Limiter
}

// NewPacer returns a token bucket for outbound pacing, or nil when rps <= 0.
func NewPacer(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Fetch performs one POST for q and decodes the response. It never retries.
func (c *Client) Fetch(ctx context.Context, q Query) (*SubmissionsResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	// Non-empty handles are forwarded verbatim, whitespace included.
	if q.Handle == "" {
		return nil, errors.New("handle is required")
	}

	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.Pacer != nil {
		if err := c.Pacer.Wait(ctx); err != nil {
			return nil, &UpstreamError{Err: fmt.Errorf("waiting for outbound pacer: %w", err)}
		}
	}

	payload, err := json.Marshal(submissionsRequest{
		Handle: q.Handle,
		Year:   q.Year,
		Month:  q.Month,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfterHeader(resp),
			Err:        ErrUpstreamRateLimited,
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response %q", resp.Status),
		}
	}

	var decoded SubmissionsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&decoded); err != nil {
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return &decoded, nil
}

// FetchSolved fetches q and flattens the result into sorted, unique,
// lowercase slugs.
func (c *Client) FetchSolved(ctx context.Context, q Query) ([]string, error) {
	resp, err := c.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	return FlattenSlugs(resp.Result), nil
}

// CheckHealth reports whether the client is usable. It does not call upstream.
func (c *Client) CheckHealth(context.Context) error {
	_, err := c.endpoint()
	return err
}

func (c *Client) endpoint() (string, error) {
	raw := DefaultURL
	if c != nil && strings.TrimSpace(c.URL) != "" {
		raw = strings.TrimSpace(c.URL)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid upstream url: %w", err)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return "", fmt.Errorf("invalid upstream url %q: must be absolute", raw)
	}
	return parsed.String(), nil
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if retry == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}
	return 0
}
