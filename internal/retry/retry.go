// Package retry implements a generic retry-with-backoff executor (C1): a
// higher-order wrapper around a fallible operation that retries on
// classified-retryable errors using exponential backoff with jitter.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/jobscout/internal/common"
)

// Config controls one Execute call's retry behavior.
type Config struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	JitterEnabled   bool
	// Retryable classifies an error as retryable. Nil defaults to
	// common.IsRetryable.
	Retryable func(error) bool
}

func (c Config) retryable(err error) bool {
	if c.Retryable != nil {
		return c.Retryable(err)
	}
	return common.IsRetryable(err)
}

// Network is the preconfigured profile for transient network I/O.
func Network() Config {
	return Config{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second, ExponentialBase: 2, JitterEnabled: true}
}

// API is the preconfigured profile for rate-limited or flaky external APIs.
func API() Config {
	return Config{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 60 * time.Second, ExponentialBase: 1.5, JitterEnabled: true}
}

// Scraping is the preconfigured profile for HTML-scraping fetches.
func Scraping() Config {
	return Config{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 45 * time.Second, ExponentialBase: 2, JitterEnabled: true}
}

// ExhaustedError wraps the last error seen after retries are exhausted.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Execute invokes fn, retrying on retryable errors per cfg. Attempt
// numbering starts at 1. A non-retryable error short-circuits immediately.
// The delay before attempt n+1 is min(MaxDelay, BaseDelay * ExponentialBase^(n-1))
// plus uniform jitter within +/-10% of that delay when JitterEnabled is set.
func Execute[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.retryable(err) {
			return zero, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := calculateDelay(cfg, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

// ExecuteWithLogging is Execute with a warning logged before each retry sleep.
func ExecuteWithLogging[T any](ctx context.Context, cfg Config, logger arbor.ILogger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 && logger != nil {
				logger.Info().Str("op", op).Int("attempt", attempt).Msg("retry succeeded")
			}
			return result, nil
		}
		lastErr = err

		if !cfg.retryable(err) {
			if logger != nil {
				logger.Error().Str("op", op).Err(err).Int("attempt", attempt).Msg("non-retryable error")
			}
			return zero, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := calculateDelay(cfg, attempt)
		if logger != nil {
			logger.Warn().Str("op", op).Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying after error")
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	if logger != nil {
		logger.Error().Str("op", op).Err(lastErr).Int("attempts", maxAttempts).Msg("retries exhausted")
	}
	return zero, &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

func calculateDelay(cfg Config, attempt int) time.Duration {
	base := float64(cfg.BaseDelay)
	exp := cfg.ExponentialBase
	if exp <= 0 {
		exp = 2
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= exp
	}

	if cfg.MaxDelay > 0 && time.Duration(delay) > cfg.MaxDelay {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.JitterEnabled {
		jitterRange := delay * 0.1
		delay += (rand.Float64()*2 - 1) * jitterRange
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}
