package retry

import (
	"context"
	"time"
)

// BackoffStrategy computes the pause that follows a failed attempt
type BackoffStrategy interface {
	// NextDelay returns the delay after the given (1-based) failed attempt
	NextDelay(attempt int) time.Duration
}

// LinearBackoff waits Base × attempt: 1×, 2×, 3× ...
type LinearBackoff struct {
	Base time.Duration
}

// NextDelay returns Base multiplied by the attempt number
func (lb LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 || lb.Base <= 0 {
		return 0
	}
	return lb.Base * time.Duration(attempt)
}

// SleepFunc pauses for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
