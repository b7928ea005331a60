package services

import (
	"context"
	"time"
)

// withRetry runs fn up to attempts times with exponential backoff,
// stopping early on success or context cancellation. Used for transient
// provider failures only; logical outcomes are never retried.
func withRetry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	var err error
	delay := base

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		if err = fn(); err == nil {
			return nil
		}
	}

	return err
}
