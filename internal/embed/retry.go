package embed

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig configures exponential-backoff retry for network-class
// errors on the embedding endpoint.
type RetryConfig struct {
	MaxRetries   int           // attempts after the initial one
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // cap on backoff delay
	Multiplier   float64       // backoff growth factor
}

// DefaultRetryConfig returns the network-class-error retry policy: up
// to 3 retries, exponential backoff from a 1s base.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
	}
}

// WithRetry runs fn, retrying on error with exponential backoff up to
// cfg.MaxRetries times. Context cancellation aborts immediately.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err != nil {
			lastErr = err
			if attempt >= cfg.MaxRetries {
				break
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			continue
		}

		return nil
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
