// Package ratelimiter wraps golang.org/x/time/rate with the small surface the
// dispatcher needs: a non-blocking admission check and a context-aware wait.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token-bucket limiter. Tokens refill at the sustained rate;
// the burst size bounds how many accepts can pass back-to-back.
//
// Thread safety: all methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing requestsPerSecond sustained with the given
// burst. A zero rate means unlimited.
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		// Effectively unlimited. rate.Inf has edge cases with Wait, so a
		// large finite value is used instead.
		requestsPerSecond = 1_000_000_000
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow reports whether one more request fits the rate limit, consuming a
// token when it does. This is the non-blocking fast path used on accept.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the current token count, for monitoring and tests.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
