// Package ratelimit provides the per-client limiter that throttles
// anonymous chat requests.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter tracks one token bucket per key (typically a client IP).
// Buckets idle long enough are dropped so the map does not grow without
// bound.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// idleEviction is how long an untouched bucket survives.
const idleEviction = 10 * time.Minute

// New creates a limiter allowing perMinute sustained requests with the
// given burst per key.
func New(perMinute, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
	}
}

// Allow reports whether a request for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()

	return b.limiter.Allow()
}

// Evict drops buckets that have been idle longer than idleEviction.
// Intended to run periodically from a background goroutine.
func (l *Limiter) Evict() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-idleEviction)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// EvictLoop runs Evict every interval until stop is closed.
func (l *Limiter) EvictLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Evict()
		case <-stop:
			return
		}
	}
}
