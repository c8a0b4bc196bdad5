package fuzzer

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter controls request rate. The underlying limiter is never
// replaced, so Wait and SetRate may run concurrently.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter. A non-positive rate disables
// limiting.
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(limitFor(requestsPerSecond), burstFor(requestsPerSecond)),
	}
}

func limitFor(requestsPerSecond float64) rate.Limit {
	if requestsPerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(requestsPerSecond)
}

// burstFor keeps at least one token so that fractional rates still admit
// requests
func burstFor(requestsPerSecond float64) int {
	return int(math.Max(1, requestsPerSecond))
}

// Wait waits until a request can be made
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// SetRate updates the rate limit
func (r *RateLimiter) SetRate(requestsPerSecond float64) {
	r.limiter.SetLimit(limitFor(requestsPerSecond))
	r.limiter.SetBurst(burstFor(requestsPerSecond))
}

// BackoffLimiter halves its rate whenever the target signals throttling
// (429, 503 or a Retry-After header) and slowly climbs back to the
// configured rate on success. It never resends a request.
type BackoffLimiter struct {
	mu          sync.Mutex
	limiter     *RateLimiter
	baseRate    float64
	currentRate float64
	minRate     float64
	successes   int
	window      int
}

// NewBackoffLimiter creates a backoff limiter starting at baseRate. A
// non-positive baseRate disables limiting entirely.
func NewBackoffLimiter(baseRate float64) *BackoffLimiter {
	minRate := baseRate / 8
	if minRate < 0.5 {
		minRate = 0.5
	}
	return &BackoffLimiter{
		limiter:     NewRateLimiter(baseRate),
		baseRate:    baseRate,
		currentRate: baseRate,
		minRate:     minRate,
		window:      20,
	}
}

// Wait waits until a request can be made
func (b *BackoffLimiter) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// Record adjusts the rate from a response status and its Retry-After value
func (b *BackoffLimiter) Record(statusCode int, retryAfter string) {
	if b.baseRate <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if statusCode == 429 || statusCode == 503 || retryAfterSet(retryAfter) {
		b.currentRate = math.Max(b.minRate, b.currentRate*0.5)
		b.successes = 0
		b.limiter.SetRate(b.currentRate)
		return
	}

	b.successes++
	if b.successes >= b.window && b.currentRate < b.baseRate {
		b.currentRate = math.Min(b.baseRate, b.currentRate*1.5)
		b.successes = 0
		b.limiter.SetRate(b.currentRate)
	}
}

// CurrentRate returns the current rate
func (b *BackoffLimiter) CurrentRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentRate
}

func retryAfterSet(v string) bool {
	if v == "" {
		return false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return secs > 0
	}
	_, err := time.Parse(time.RFC1123, v)
	return err == nil
}
