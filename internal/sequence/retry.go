package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/taskhub/internal/persistence"
)

// ErrExhausted is returned when every attempt ended in a conflict.
var ErrExhausted = errors.New("sequence: allocation retries exhausted")

// RetryPolicy configures how conflicting attempts are retried.
//
// The zero policy performs a single attempt and returns its error unchanged,
// which is what a caller already running inside a retried unit of work wants.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy returns the policy used by the service.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   5,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      500 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

// Do runs fn until it succeeds, fails with a non-conflict error, the context
// ends or MaxAttempts conflicts have been observed.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.MaxAttempts <= 0 {
		return fn(ctx)
	}

	delay := p.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = p.nextDelay(delay)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, persistence.ErrConflict) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.MaxAttempts, lastErr)
}

func (p RetryPolicy) nextDelay(current time.Duration) time.Duration {
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	next := time.Duration(float64(current) * factor)
	if p.MaxDelay > 0 && next > p.MaxDelay {
		next = p.MaxDelay
	}
	return next
}
