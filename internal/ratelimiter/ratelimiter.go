// Package ratelimiter provides token-bucket rate limiting for the HTTP
// layer: a plain limiter for global throttling and a keyed variant that
// tracks one bucket per client IP.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps golang.org/x/time/rate's token bucket.
//
// Tokens are added at a constant rate (requests per second) and each
// request consumes one; burst capacity absorbs short spikes above the
// sustained rate. This is what keeps 4-digit share codes safe: an
// attacker probing codes burns through the bucket long before the
// keyspace.
//
// Thread safety: all methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing requestsPerSecond sustained with the
// given burst capacity. A zero rate means unlimited.
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		// Effectively unlimited; rate.Inf has edge cases around Wait
		requestsPerSecond = 1_000_000_000
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow reports whether a request may proceed, consuming a token when it
// may. It never blocks; callers reject with 429 on false.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
// Used where throttling beats rejecting, e.g. the GC's delete batches.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the current number of available tokens, for monitoring
// and tests. The value can change immediately after the call.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
