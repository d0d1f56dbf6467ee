package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/charlesng35/mentorlink/internal/cache"
)

const defaultRateWindow = time.Minute

// RateStore counts hits for a key inside a fixed window and reports when the window resets.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

type rateWindow struct {
	hits    int
	resetAt time.Time
}

// memoryRateStore keeps windows in process memory. Expired windows are swept lazily.
type memoryRateStore struct {
	mu        sync.Mutex
	windows   map[string]rateWindow
	now       func() time.Time
	nextSweep time.Time
}

// NewMemoryRateStore returns a RateStore local to this process.
func NewMemoryRateStore() RateStore {
	return newMemoryRateStore(time.Now)
}

func newMemoryRateStore(now func() time.Time) *memoryRateStore {
	return &memoryRateStore{windows: make(map[string]rateWindow), now: now}
}

func (s *memoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = defaultRateWindow
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !now.Before(s.nextSweep) {
		s.sweep(now)
		s.nextSweep = now.Add(defaultRateWindow)
	}

	w := s.windows[key]
	if !now.Before(w.resetAt) {
		w = rateWindow{resetAt: now.Add(window)}
	}
	w.hits++
	s.windows[key] = w

	return w.hits, w.resetAt.Sub(now), nil
}

func (s *memoryRateStore) sweep(now time.Time) {
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}
}

// sharedRateStore counts through a cache.Store so every instance sees the same windows.
type sharedRateStore struct {
	store cache.Store
}

// NewRedisRateStore returns nil when store is nil so callers can fall back to memory.
func NewRedisRateStore(store cache.Store) RateStore {
	if store == nil {
		return nil
	}
	return sharedRateStore{store: store}
}

func (s sharedRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = defaultRateWindow
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, key, window)
	return int(count), ttl, err
}
