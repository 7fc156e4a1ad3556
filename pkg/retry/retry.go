package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/vaidashi/phone-order-api/pkg/logger"
)

// RetryableFunc is one attempt of an operation. attempt starts at 1.
type RetryableFunc func(ctx context.Context, attempt int) error

// RetryConfig holds the configuration for retrying operations
type RetryConfig struct {
	MaxAttempts     int
	BackoffStrategy BackoffStrategy
	Logger          logger.Logger
	// ShouldRetry classifies errors; nil retries every error
	ShouldRetry func(error) bool
}

func (c *RetryConfig) attempts() int {
	if c.MaxAttempts < 1 {
		return 1
	}
	return c.MaxAttempts
}

func (c *RetryConfig) log() logger.Logger {
	if c.Logger == nil {
		return logger.NewNop()
	}
	return c.Logger
}

// Retry runs fn until it succeeds, returns a non-retryable error, or runs out of attempts.
// The last error is wrapped so callers can still match it with errors.Is.
func Retry(ctx context.Context, fn RetryableFunc, cfg *RetryConfig) error {
	var lastErr error
	max := cfg.attempts()

	for attempt := 1; attempt <= max; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled by context: %w", err)
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(lastErr) {
			cfg.log().Warn("Non-retryable error encountered, giving up", "error", lastErr, "attempt", attempt)
			return lastErr
		}

		if attempt == max {
			break
		}

		wait := cfg.BackoffStrategy.NextBackoff(attempt)
		cfg.log().Info("Retrying after error",
			"error", lastErr,
			"attempt", attempt,
			"maxAttempts", max,
			"backoff", wait)

		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry cancelled by context during backoff: %w", err)
		}
	}

	return fmt.Errorf("all %d retry attempts failed, last error: %w", max, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryWithDiscard retries fn and hands the final error to discard when every attempt failed
func RetryWithDiscard(ctx context.Context, fn RetryableFunc, cfg *RetryConfig, discard func(error) error) error {
	err := Retry(ctx, fn, cfg)
	if err == nil {
		return nil
	}

	cfg.log().Error("All retries failed, applying discard policy", "error", err, "maxAttempts", cfg.attempts())
	return discard(err)
}
