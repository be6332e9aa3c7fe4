package cursor

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is the token bucket shared by every request of a client.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a full bucket of burst tokens refilled at perSecond.
// Non-positive values fall back to one request per second and a burst of one.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Acquire blocks until a token is available. It fails without waiting when
// ctx ends before a token would be.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// TryAcquire takes a token without blocking.
func (r *RateLimiter) TryAcquire() bool {
	return r.limiter.Allow()
}

// Available returns the current number of available tokens.
func (r *RateLimiter) Available() float64 {
	return r.limiter.Tokens()
}
