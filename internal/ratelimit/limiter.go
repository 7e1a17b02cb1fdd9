// Package ratelimit implements the fixed-window request gate that protects the
// solved-problems route.
//
// Each caller key gets a window that opens on its first request and lasts
// Limiter.Window. Every request in the window increments the count, including
// rejected ones; a request is rejected once the count exceeds Limiter.Max.
// State lives in a Store owned by the serving process and is injected, so the
// clock and the storage can be replaced in tests.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// State captures one caller's current window.
type State struct {
	Count       int
	WindowStart time.Time
	LastSeen    time.Time
}

// Store holds window state per caller key. Increment must apply the
// reset-if-expired and the increment as one atomic step for a given key.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (State, error)
	Reset(ctx context.Context, key string) error
}

// Decision is the outcome of a Take call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time

	// RetryAfter is the time until the caller's window resets.
	RetryAfter time.Duration
}

// Limiter enforces Max requests per Window for each key.
type Limiter struct {
	Store  Store
	Max    int
	Window time.Duration
	Clock  func() time.Time
}

// ErrNotConfigured is returned by Take when the limiter has no store or a
// non-positive Max/Window.
var ErrNotConfigured = errors.New("rate limiter is not configured")

// NewLimiter returns a limiter backed by store.
func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{
		Store:  store,
		Max:    limit,
		Window: window,
	}
}

// Take counts one request for key and decides whether it may proceed.
func (l *Limiter) Take(ctx context.Context, key string) (Decision, error) {
	if l == nil || l.Store == nil || l.Max < 1 || l.Window <= 0 {
		return Decision{}, ErrNotConfigured
	}

	now := l.now()
	state, err := l.Store.Increment(ctx, key, l.Window, now)
	if err != nil {
		return Decision{}, err
	}

	resetAt := state.WindowStart.Add(l.Window)
	retryAfter := resetAt.Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}

	remaining := l.Max - state.Count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:    state.Count <= l.Max,
		Limit:      l.Max,
		Remaining:  remaining,
		ResetAt:    resetAt,
		RetryAfter: retryAfter,
	}, nil
}

// Reset forgets key's window.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if l == nil || l.Store == nil {
		return ErrNotConfigured
	}
	return l.Store.Reset(ctx, key)
}

func (l *Limiter) now() time.Time {
	if l != nil && l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}
