package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// RetryConfig bounds fetch retries with exponential backoff.
type RetryConfig struct {
	// Attempts includes the first try.
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetry is three attempts starting at 500ms.
func DefaultRetry() RetryConfig {
	return RetryConfig{Attempts: 3, InitialDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second, Multiplier: 2}
}

// retryable reports whether another attempt may succeed. HTML responses,
// oversized bodies and 4xx other than 429 will not change on retry.
func retryable(err error) bool {
	if err == nil || errors.Is(err, ErrNotCSV) || errors.Is(err, ErrTooLarge) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError || se.Code == http.StatusTooManyRequests
	}
	return true
}

func withRetry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.Attempts {
			break
		}

		delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1)))
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	if cfg.Attempts > 1 {
		return fmt.Errorf("after %d attempts: %w", cfg.Attempts, lastErr)
	}
	return lastErr
}
