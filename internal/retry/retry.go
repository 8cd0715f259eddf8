// Package retry runs flaky calls a bounded number of times with linear backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultBackoff is the base wait; attempt i waits i*base before the next try.
const DefaultBackoff = 500 * time.Millisecond

// Permanent marks an error that must not be retried.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Stop wraps err so Do returns it without further attempts.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// Do calls fn up to attempts times, waiting backoff*(i+1) between tries.
// Context cancellation ends the loop immediately.
func Do[T any](ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		var perm *Permanent
		if errors.As(err, &perm) {
			return zero, perm.Err
		}
		lastErr = err

		if i == attempts-1 {
			break
		}
		if err := wait(ctx, time.Duration(i+1)*backoff); err != nil {
			return zero, fmt.Errorf("after %d attempts: %w", i+1, errors.Join(lastErr, err))
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
