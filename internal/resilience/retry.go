package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return &permanentError{err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Retry calls fn up to attempts times with exponential backoff starting at
// delay. Errors wrapped with Permanent stop the loop immediately.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(delay))

	attempt := 0
	var last error
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			slog.Info("Retrying request...", "attempt", attempt)
		}

		last = fn(ctx)
		if last == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(last, &perm) {
			return perm.err
		}
		return retry.RetryableError(last)
	})
	if err == nil {
		return nil
	}
	var perm *permanentError
	if errors.As(last, &perm) {
		return perm.err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("after %d attempts, last error: %w", attempt, last)
}
