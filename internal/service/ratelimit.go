package service

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is an in-memory per-key rate limiter. It is safe for
// concurrent use. Upload and collage endpoints are keyed by device id.
type TokenBucket struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     float64 // tokens added per second
	capacity float64 // maximum tokens
	now      func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenBucket creates a rate limiter that allows up to capacity tokens per key,
// refilling at the given rate (tokens per second). Call Run to evict idle keys.
func NewTokenBucket(rate, capacity float64) *TokenBucket {
	return &TokenBucket{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		capacity: capacity,
		now:      time.Now,
	}
}

// PerMinute creates a limiter allowing n requests per minute with a burst of n.
func PerMinute(n int) *TokenBucket {
	return NewTokenBucket(float64(n)/60, float64(n))
}

// Allow reports whether the given key is allowed to proceed under the rate limit.
// Each call consumes one token.
func (tb *TokenBucket) Allow(key string) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: tb.capacity, last: now}
		tb.buckets[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	b.tokens = min(b.tokens+elapsed*tb.rate, tb.capacity)
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Run removes buckets idle for longer than ttl every interval until ctx is done.
func (tb *TokenBucket) Run(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tb.Evict(ttl)
		}
	}
}

// Evict drops buckets not used within ttl and returns how many were removed.
func (tb *TokenBucket) Evict(ttl time.Duration) int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	cutoff := tb.now().Add(-ttl)
	n := 0
	for key, b := range tb.buckets {
		if b.last.Before(cutoff) {
			delete(tb.buckets, key)
			n++
		}
	}
	return n
}
