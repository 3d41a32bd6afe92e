package ratelimit

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"imgurcomments/pkg/config"
)

// minWait bounds how often a blocked Wait polls its limiter
const minWait = 10 * time.Millisecond

// Limiter paces page requests on the client side, independently of the
// quota the API reports back.
type Limiter interface {
	// Allow takes a request slot if one is free right now
	Allow() bool
	// Wait blocks until a request slot is free or ctx ends
	Wait(ctx context.Context) error
	// Reset forgets all past requests
	Reset()
}

// NewLimiter builds the limiter described by cfg. It returns nil when pacing
// is disabled (RequestsPerMinute of 0).
func NewLimiter(cfg config.RateLimitConfig) Limiter {
	if cfg.RequestsPerMinute <= 0 {
		return nil
	}

	if strings.EqualFold(cfg.Strategy, "sliding_window") {
		return NewSlidingWindow(cfg.RequestsPerMinute, time.Minute)
	}

	burst := cfg.BurstSize
	if burst <= 0 || burst > cfg.RequestsPerMinute {
		burst = cfg.RequestsPerMinute
	}
	return NewTokenBucket(burst, time.Minute*time.Duration(burst)/time.Duration(cfg.RequestsPerMinute))
}

// TokenBucket allows bursts of up to capacity requests and earns the slots
// back one at a time, capacity slots per period.
type TokenBucket struct {
	mu       sync.Mutex
	capacity float64
	tokens   float64
	perToken time.Duration
	last     time.Time
	now      func() time.Time
}

// NewTokenBucket creates a full bucket
func NewTokenBucket(capacity int, period time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	tb := &TokenBucket{
		capacity: float64(capacity),
		perToken: period / time.Duration(capacity),
		now:      time.Now,
	}
	tb.Reset()
	return tb
}

// Allow takes a token if one is available
func (tb *TokenBucket) Allow() bool {
	return tb.reserve() == 0
}

// Wait blocks until a token can be taken
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return wait(ctx, tb.reserve)
}

// Reset refills the bucket
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.last = tb.now()
}

// reserve takes a token and returns 0, or returns how long until the next
// token is earned.
func (tb *TokenBucket) reserve() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	if tb.perToken <= 0 {
		tb.tokens = tb.capacity
	} else if elapsed := now.Sub(tb.last); elapsed > 0 {
		tb.tokens = math.Min(tb.capacity, tb.tokens+float64(elapsed)/float64(tb.perToken))
	}
	tb.last = now

	if tb.tokens >= 1 {
		tb.tokens--
		return 0
	}
	return time.Duration((1 - tb.tokens) * float64(tb.perToken))
}

// SlidingWindow allows at most maxRequests within any window of windowSize
type SlidingWindow struct {
	mu          sync.Mutex
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
}

// NewSlidingWindow creates an empty window
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	if maxRequests < 1 {
		maxRequests = 1
	}
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// Allow records a request if the window has room for it
func (sw *SlidingWindow) Allow() bool {
	return sw.reserve() == 0
}

// Wait blocks until the oldest request in the window has expired
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	return wait(ctx, sw.reserve)
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

func (sw *SlidingWindow) reserve() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	expired := 0
	for expired < len(sw.requests) && !sw.requests[expired].After(now.Add(-sw.windowSize)) {
		expired++
	}
	sw.requests = append(sw.requests[:0], sw.requests[expired:]...)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return 0
	}
	return sw.requests[0].Add(sw.windowSize).Sub(now)
}

// wait polls reserve until it grants a slot, sleeping for the delay it reports
func wait(ctx context.Context, reserve func() time.Duration) error {
	for {
		d := reserve()
		if d <= 0 {
			return nil
		}
		if d < minWait {
			d = minWait
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
