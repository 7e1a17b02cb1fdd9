package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(clock *fakeClock, limit int, window time.Duration) *Limiter {
	limiter := NewLimiter(NewMemoryStore(WithStoreClock(clock.Now)), limit, window)
	limiter.Clock = clock.Now
	return limiter
}

func TestLimiterAdmitsMaxThenRejects(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(clock, 3, 15*time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		decision, err := limiter.Take(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, decision.Allowed, "request %d should be allowed", i)
		require.Equal(t, 3-i, decision.Remaining)
		require.Equal(t, 3, decision.Limit)
	}

	decision, err := limiter.Take(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, 0, decision.Remaining)
	require.Equal(t, 15*time.Minute, decision.RetryAfter)
}

func TestLimiterWindowResets(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(clock, 1, time.Minute)
	ctx := context.Background()

	decision, err := limiter.Take(ctx, "caller")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	clock.Advance(30 * time.Second)
	decision, err = limiter.Take(ctx, "caller")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, 30*time.Second, decision.RetryAfter)

	clock.Advance(30 * time.Second)
	decision, err = limiter.Take(ctx, "caller")
	require.NoError(t, err)
	require.True(t, decision.Allowed, "window should have reset")
	require.Equal(t, clock.Now().Add(time.Minute), decision.ResetAt)
}

func TestLimiterRejectedRequestsStillCount(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(clock, 1, time.Minute)
	store := limiter.Store.(*MemoryStore)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := limiter.Take(ctx, "caller")
		require.NoError(t, err)
	}

	state, ok := store.Get("caller")
	require.True(t, ok)
	require.Equal(t, 4, state.Count)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(clock, 1, time.Minute)
	ctx := context.Background()

	first, err := limiter.Take(ctx, "a")
	require.NoError(t, err)
	second, err := limiter.Take(ctx, "b")
	require.NoError(t, err)

	require.True(t, first.Allowed)
	require.True(t, second.Allowed)
}

func TestLimiterReset(t *testing.T) {
	clock := newFakeClock()
	limiter := newTestLimiter(clock, 1, time.Minute)
	ctx := context.Background()

	_, err := limiter.Take(ctx, "caller")
	require.NoError(t, err)
	require.NoError(t, limiter.Reset(ctx, "caller"))

	decision, err := limiter.Take(ctx, "caller")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestLimiterNotConfigured(t *testing.T) {
	var nilLimiter *Limiter
	_, err := nilLimiter.Take(context.Background(), "x")
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewLimiter(NewMemoryStore(), 0, time.Minute).Take(context.Background(), "x")
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewLimiter(nil, 1, time.Minute).Take(context.Background(), "x")
	require.ErrorIs(t, err, ErrNotConfigured)
}

type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Duration, time.Time) (State, error) {
	return State{}, errors.New("store down")
}

func (failingStore) Reset(context.Context, string) error { return nil }

func TestLimiterPropagatesStoreErrors(t *testing.T) {
	_, err := NewLimiter(failingStore{}, 1, time.Minute).Take(context.Background(), "x")
	require.EqualError(t, err, "store down")
}

func TestMemoryStoreConcurrentIncrementsAreNotLost(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now().UTC()

	const workers = 50
	const perWorker = 20

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, _ = store.Increment(context.Background(), "shared", time.Hour, now)
			}
		}()
	}
	wg.Wait()

	state, ok := store.Get("shared")
	require.True(t, ok)
	require.Equal(t, workers*perWorker, state.Count)
}

func TestMemoryStoreCleanupRemovesIdleKeys(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithStoreClock(clock.Now))
	ctx := context.Background()

	_, err := store.Increment(ctx, "old", time.Minute, clock.Now())
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	_, err = store.Increment(ctx, "fresh", time.Minute, clock.Now())
	require.NoError(t, err)

	removed := store.Cleanup(5 * time.Minute)
	require.Equal(t, 1, removed)
	require.Equal(t, 1, store.Len())

	_, ok := store.Get("old")
	require.False(t, ok)
}

func TestMemoryStoreJanitorStopsWithContext(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithStoreClock(clock.Now))
	_, err := store.Increment(context.Background(), "idle", time.Minute, clock.Now())
	require.NoError(t, err)
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	swept := make(chan int, 8)
	store.StartJanitor(ctx, 5*time.Millisecond, time.Minute, func(tracked int) {
		select {
		case swept <- tracked:
		default:
		}
	})

	select {
	case tracked := <-swept:
		require.Equal(t, 0, tracked)
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not run")
	}
}
