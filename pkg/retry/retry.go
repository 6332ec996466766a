// Package retry provides a bounded retry helper with exponential backoff,
// shared by every stage of a provider pipeline so backoff semantics stay
// consistent.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Do runs fn up to attempts times. A failed attempt is retried only when
// retryable reports true for its error; the delay before attempt n+1 is
// base*2^n. On exhaustion the last error is returned unchanged so its
// classification survives to the caller.
func Do[T any](ctx context.Context, attempts int, base time.Duration, retryable func(error) bool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if attempts < 1 {
		return zero, fmt.Errorf("retry: attempts must be at least 1, got %d", attempts)
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, base<<(attempt-1)); err != nil {
				return zero, lastErr
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, err
		}
	}

	return zero, lastErr
}

// sleep waits for d or until ctx is canceled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
