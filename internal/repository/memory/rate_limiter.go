package memory

import (
	"context"
	"sync"
	"time"

	"otp-auth-service/internal/util"
)

// RateLimiter is a per-key sliding window log held in process memory.
type RateLimiter struct {
	limit  int
	window time.Duration
	clock  util.Clock

	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewRateLimiter(limit int, window time.Duration, clock util.Clock) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string][]time.Time),
	}
}

func (l *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(l.windows[key], now)
	if len(recent) >= l.limit {
		l.windows[key] = recent
		return false, nil
	}
	l.windows[key] = append(recent, now)
	return true, nil
}

// Prune drops windows with no entries younger than the window length.
func (l *RateLimiter) Prune(_ context.Context) (int, error) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, stamps := range l.windows {
		recent := l.prune(stamps, now)
		if len(recent) == 0 {
			delete(l.windows, key)
			removed++
			continue
		}
		l.windows[key] = recent
	}
	return removed, nil
}

// prune keeps timestamps strictly younger than the window. stamps is in
// insertion order, so the first young entry ends the scan.
func (l *RateLimiter) prune(stamps []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(stamps) && now.Sub(stamps[i]) >= l.window {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append([]time.Time(nil), stamps[i:]...)
}
