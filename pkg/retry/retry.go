// Package retry runs an operation a bounded number of times, pausing with a
// configurable backoff after each transient failure.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "igbackend/pkg/errors"
	"igbackend/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func(ctx context.Context) error

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts; values below 1 mean 1
	MaxAttempts int
	// Backoff strategy to use
	Backoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called after each retryable failure, before the pause
	OnRetry func(attempt int, err error, delay time.Duration)
	// PauseAfterLastAttempt also applies the backoff once attempts are
	// exhausted, so the next caller starts after a cool-down
	PauseAfterLastAttempt bool
	// Sleep replaces Wait, mostly in tests
	Sleep SleepFunc
	// Logger for retry attempts
	Logger logger.Logger
}

// DefaultConfig returns the download policy: 3 attempts, linear backoff
// of base × attempt, retrying rate limits and network failures only.
func DefaultConfig(base time.Duration) *Config {
	return &Config{
		MaxAttempts:           3,
		Backoff:               LinearBackoff{Base: base},
		RetryIf:               DefaultRetryIf,
		PauseAfterLastAttempt: true,
	}
}

// DefaultRetryIf retries transient Instagram failures
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errs.IsTransient(errs.Classify(err))
}

// ExhaustedError is returned once every attempt failed with a retryable error
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return e.Err.Error()
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do executes an operation with retry logic
func Do(ctx context.Context, cfg *Config, op Operation) error {
	if cfg == nil {
		cfg = DefaultConfig(time.Second)
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Wait
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if !retryIf(err) {
			return err
		}

		last := attempt >= maxAttempts
		var delay time.Duration
		if cfg.Backoff != nil && (!last || cfg.PauseAfterLastAttempt) {
			delay = cfg.Backoff.NextDelay(attempt)
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retryable failure", map[string]interface{}{
				"attempt":      attempt,
				"max_attempts": maxAttempts,
				"error":        err.Error(),
				"delay":        delay,
			})
		}

		if waitErr := sleep(ctx, delay); waitErr != nil {
			return fmt.Errorf("retry cancelled: %w", waitErr)
		}

		if last {
			return &ExhaustedError{Attempts: attempt, Err: err}
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, cfg *Config, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
