package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps window state in process memory. It is safe for
// concurrent use; state is lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*State
	clock   func() time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithStoreClock sets the clock used by Cleanup.
func WithStoreClock(clock func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.clock = clock }
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Increment implements Store.
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration, now time.Time) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		entry = &State{WindowStart: now}
		s.entries[key] = entry
	}
	if !now.Before(entry.WindowStart.Add(window)) {
		entry.Count = 0
		entry.WindowStart = now
	}

	entry.Count++
	entry.LastSeen = now
	return *entry, nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Get returns a copy of key's state.
func (s *MemoryStore) Get(key string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return State{}, false
	}
	return *entry, true
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup removes keys not seen for longer than idle and returns how many
// were removed.
func (s *MemoryStore) Cleanup(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if entry.LastSeen.Before(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// StartJanitor runs Cleanup(idle) every interval until ctx is done. The
// onSweep callback, when set, receives the number of keys still tracked.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval, idle time.Duration, onSweep func(tracked int)) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup(idle)
				if onSweep != nil {
					onSweep(s.Len())
				}
			}
		}
	}()
}

func (s *MemoryStore) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now().UTC()
}
