package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/taskhub/internal/logging"
	"github.com/example/taskhub/internal/persistence"
)

// ErrInvalidRequest is returned for an empty owner or unknown kind.
var ErrInvalidRequest = errors.New("sequence: invalid allocation request")

// Allocator hands out display numbers unique per (owner, kind).
//
// Uniqueness rests on the reserver: each reservation is a single atomic
// read-modify-write in the store. The allocator adds bounded retries for
// the transient conflicts a store reports under contention.
type Allocator struct {
	source persistence.SequenceReserver
	policy RetryPolicy
	logger *slog.Logger
}

// NewAllocator wires an allocator to a reserver.
func NewAllocator(source persistence.SequenceReserver, policy RetryPolicy, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{source: source, policy: policy, logger: logger}
}

// Policy exposes the retry policy so callers can retry whole units of work
// that contain allocations.
func (a *Allocator) Policy() RetryPolicy {
	return a.policy
}

// Within returns an allocator bound to a transaction. It makes one attempt
// per call; the owner of the transaction retries the unit as a whole.
func (a *Allocator) Within(source persistence.SequenceReserver) *Allocator {
	return &Allocator{source: source, logger: a.logger}
}

// Next returns the smallest number above every number already handed out
// for (ownerID, kind), starting at 1.
func (a *Allocator) Next(ctx context.Context, ownerID string, kind persistence.Kind) (int64, error) {
	if ownerID == "" || !kind.Valid() {
		return 0, fmt.Errorf("%w: owner=%q kind=%q", ErrInvalidRequest, ownerID, kind)
	}
	if a.source == nil {
		return 0, errors.New("sequence: reserver not configured")
	}

	attempt := 0
	var number int64
	err := a.policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			a.loggerFor(ctx).DebugContext(ctx, "retrying display number reservation",
				"owner_id", ownerID, "kind", kind, "attempt", attempt)
		}
		n, err := a.source.ReserveDisplayNumber(ctx, ownerID, kind)
		if err != nil {
			return err
		}
		if n <= 0 {
			return fmt.Errorf("sequence: reserver returned non-positive number %d", n)
		}
		number = n
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrExhausted) {
			a.loggerFor(ctx).WarnContext(ctx, "display number allocation exhausted",
				"owner_id", ownerID, "kind", kind, "attempts", attempt, "error", err)
		}
		return 0, err
	}
	return number, nil
}

func (a *Allocator) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return a.logger
}
