package service

import (
	"context"
	"sync"
	"time"

	"github.com/msomdec/merchtrax/internal/timer"
)

// TokenBucket is an in-memory per-key rate limiter. Login attempts are keyed
// by client address.
type TokenBucket struct {
	clock    timer.Clock
	rate     float64 // tokens per second
	capacity float64

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenBucket allows bursts of capacity per key, refilling at rate tokens
// per second. A nil clock uses the system clock.
func NewTokenBucket(rate, capacity float64, clock timer.Clock) *TokenBucket {
	if clock == nil {
		clock = timer.SystemClock
	}
	return &TokenBucket{
		clock:    clock,
		rate:     rate,
		capacity: capacity,
		buckets:  make(map[string]*bucket),
	}
}

// Allow consumes one token for key and reports whether one was available.
func (tb *TokenBucket) Allow(key string) bool {
	now := tb.clock.Now()

	tb.mu.Lock()
	defer tb.mu.Unlock()

	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: tb.capacity, last: now}
		tb.buckets[key] = b
	}

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(b.tokens+elapsed*tb.rate, tb.capacity)
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Prune drops buckets untouched for longer than idle and returns how many
// were removed.
func (tb *TokenBucket) Prune(idle time.Duration) int {
	cutoff := tb.clock.Now().Add(-idle)

	tb.mu.Lock()
	defer tb.mu.Unlock()
	n := 0
	for key, b := range tb.buckets {
		if b.last.Before(cutoff) {
			delete(tb.buckets, key)
			n++
		}
	}
	return n
}

// Run prunes idle buckets every interval until ctx is done.
func (tb *TokenBucket) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tb.Prune(idle)
		}
	}
}
