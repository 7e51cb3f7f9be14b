// Package ratelimit throttles repeated diagnostics such as receive buffer
// overruns, which can fire thousands of times a second under load.
package ratelimit

import (
	"sync"
	"time"

	"grimm.is/scribe/internal/clock"
)

// Limiter allows up to limit events per interval for each key.
type Limiter struct {
	limit    int
	interval time.Duration
	clock    clock.Clock

	mu      sync.Mutex
	buckets map[string]*bucket
}

// bucket is a fixed window: tokens reset once interval has passed.
type bucket struct {
	tokens     int
	lastFill   time.Time
	suppressed uint64
}

// NewLimiter creates a limiter. A nil clock uses the real one.
func NewLimiter(limit int, interval time.Duration, c clock.Clock) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	if c == nil {
		c = &clock.RealClock{}
	}
	return &Limiter{
		limit:    limit,
		interval: interval,
		clock:    c,
		buckets:  make(map[string]*bucket),
	}
}

// Allow reports whether an event for key may go through. When a new window
// opens, it also returns how many events the previous one suppressed.
func (l *Limiter) Allow(key string) (ok bool, suppressed uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{tokens: l.limit, lastFill: now}
		l.buckets[key] = b
	}

	if now.Sub(b.lastFill) >= l.interval {
		b.tokens = l.limit
		b.lastFill = now
		suppressed, b.suppressed = b.suppressed, 0
	}

	if b.tokens <= 0 {
		b.suppressed++
		return false, 0
	}
	b.tokens--
	return true, suppressed
}

// Reset forgets key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}
