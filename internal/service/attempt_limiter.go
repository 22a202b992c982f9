package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AttemptLimiter throttles PIN submissions per key with a token bucket.
// A nil *AttemptLimiter allows everything.
type AttemptLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idle     time.Duration
	limiters map[string]*attemptBucket
}

type attemptBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewAttemptLimiter returns nil when perSecond is not positive.
func NewAttemptLimiter(perSecond float64, burst int) *AttemptLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	// A bucket idle long enough to refill completely carries no state.
	idle := time.Duration(float64(burst)/perSecond*float64(time.Second)) + time.Minute
	return &AttemptLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     idle,
		limiters: make(map[string]*attemptBucket),
	}
}

// Reserve takes one attempt for key at now. ok is false when the bucket is
// empty. Calling refund returns the attempt to the bucket, so callers refund
// successful attempts and only failures count against the budget.
func (l *AttemptLimiter) Reserve(key string, now time.Time) (refund func(), ok bool) {
	if l == nil {
		return func() {}, true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b, found := l.limiters[key]
	if !found {
		b = &attemptBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = b
	}
	b.lastSeen = now
	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return nil, false
	}
	if r.DelayFrom(now) > 0 {
		r.CancelAt(now)
		return nil, false
	}
	return func() { r.CancelAt(now) }, true
}

// Sweep drops buckets not used since they would have refilled.
func (l *AttemptLimiter) Sweep(now time.Time) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for key, b := range l.limiters {
		if now.Sub(b.lastSeen) > l.idle {
			delete(l.limiters, key)
			n++
		}
	}
	return n
}
