// Package ratelimit provides per-client fixed-window admission control.
//
// State is process-local: in a multi-instance deployment each instance
// enforces its own window, so effective limits scale with instance count.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultWindow is the admission window length.
const DefaultWindow = time.Minute

// sweepEvery bounds how often stale records are evicted. Eviction keeps the
// record map from growing with every distinct client key ever seen.
const sweepEvery = 5 * time.Minute

type record struct {
	windowStart time.Time
	count       int
}

// Limiter admits up to limit requests per key per window.
type Limiter struct {
	mu        sync.Mutex
	records   map[string]*record
	window    time.Duration
	limit     int
	lastSweep time.Time
	now       func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter allowing limit requests per DefaultWindow.
func New(limit int, opts ...Option) *Limiter {
	l := &Limiter{
		records: make(map[string]*record),
		window:  DefaultWindow,
		limit:   limit,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Allow reports whether a request for key is admitted.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > sweepEvery {
		l.sweepLocked(now)
	}

	rec, ok := l.records[key]
	if !ok || now.Sub(rec.windowStart) > l.window {
		l.records[key] = &record{windowStart: now, count: 1}
		return true
	}

	rec.count++
	return rec.count <= l.limit
}

// Size returns the number of tracked client keys.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *Limiter) sweepLocked(now time.Time) {
	for key, rec := range l.records {
		if now.Sub(rec.windowStart) > l.window {
			delete(l.records, key)
		}
	}
	l.lastSweep = now
}
