// Package ratelimit bounds how many requests a single source may make within
// a rolling time window.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed bool

	// Limit is the configured maximum per window.
	Limit int

	// Remaining is how many more requests fit in the current window.
	Remaining int

	// ResetAt is when the oldest counted request leaves the window.
	ResetAt time.Time
}

// RetryAfter returns how long a rejected caller should wait, rounded up to
// whole seconds.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return wait.Truncate(time.Second) + time.Second
}

// Limiter implements a sliding-window log per key. Only allowed requests are
// recorded, so a rejected burst does not extend the lockout.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time

	limit  int
	window time.Duration
	now    func() time.Time
}

// New creates a limiter admitting limit requests per window for each key.
// A limit of 0 means unlimited.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow records a request for key if it fits in the window.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()
	if l.limit <= 0 {
		return Decision{Allowed: true, ResetAt: now}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.evict(key, now)

	if len(hits) >= l.limit {
		return Decision{
			Allowed: false,
			Limit:   l.limit,
			ResetAt: hits[0].Add(l.window),
		}
	}

	hits = append(hits, now)
	l.windows[key] = hits

	return Decision{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(hits),
		ResetAt:   hits[0].Add(l.window),
	}
}

// Reset clears the state for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Prune drops keys with no requests left in the window and returns how many
// were dropped.
func (l *Limiter) Prune() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for key := range l.windows {
		if len(l.evict(key, now)) == 0 {
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// evict removes expired entries for key. Must hold l.mu.
func (l *Limiter) evict(key string, now time.Time) []time.Time {
	hits := l.windows[key]
	cutoff := now.Add(-l.window)

	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == len(hits) {
		delete(l.windows, key)
		return nil
	}
	if i > 0 {
		hits = append(hits[:0], hits[i:]...)
		l.windows[key] = hits
	}
	return hits
}
