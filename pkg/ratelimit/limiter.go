// Package ratelimit throttles outbound requests to Instagram.
package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow reports whether a request may proceed right now
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
}

// TokenBucket spreads requests evenly over a minute with a burst allowance
type TokenBucket struct {
	limiter   *rate.Limiter
	throttled atomic.Int64
}

// NewPerMinute creates a limiter allowing requestsPerMinute with the given burst
func NewPerMinute(requestsPerMinute, burst int) *TokenBucket {
	if requestsPerMinute <= 0 {
		return Unlimited()
	}
	if burst <= 0 {
		burst = 1
	}
	every := time.Minute / time.Duration(requestsPerMinute)
	return &TokenBucket{limiter: rate.NewLimiter(rate.Every(every), burst)}
}

// Unlimited returns a limiter that never blocks
func Unlimited() *TokenBucket {
	return &TokenBucket{limiter: rate.NewLimiter(rate.Inf, 0)}
}

// Allow checks if a request can proceed without waiting
func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	if !tb.limiter.Allow() {
		tb.throttled.Add(1)
		return tb.limiter.Wait(ctx)
	}
	return nil
}

// Throttled returns how many requests had to wait for a token
func (tb *TokenBucket) Throttled() int64 {
	return tb.throttled.Load()
}
