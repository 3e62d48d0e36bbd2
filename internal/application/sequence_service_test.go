package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/taskhub/internal/persistence"
	"github.com/example/taskhub/internal/testfixtures"
)

func TestSequenceServiceNext(t *testing.T) {
	store := testfixtures.NewMemoryStore(t, "alice", "bob")
	svc := NewSequenceService(store, testfixtures.NewAllocator(store), testfixtures.DiscardLogger())
	ctx := context.Background()

	for _, want := range []int64{1, 2, 3} {
		got, err := svc.Next(ctx, "alice", persistence.KindTask)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}

	if got, _ := svc.Next(ctx, "alice", persistence.KindHabit); got != 1 {
		t.Fatalf("expected independent habit counter, got %d", got)
	}
	if got, _ := svc.Next(ctx, "bob", persistence.KindTask); got != 1 {
		t.Fatalf("expected independent owner counter, got %d", got)
	}
}

func TestSequenceServiceErrors(t *testing.T) {
	store := testfixtures.NewMemoryStore(t, "alice")
	svc := NewSequenceService(store, testfixtures.NewAllocator(store), testfixtures.DiscardLogger())

	var vErr *ValidationError
	if _, err := svc.Next(context.Background(), "alice", persistence.Kind("widget")); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := svc.Next(context.Background(), "nobody", persistence.KindTask); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	contended := NewSequenceService(store, testfixtures.NewAllocator(conflictingReserver{}), testfixtures.DiscardLogger())
	if _, err := contended.Next(context.Background(), "alice", persistence.KindTask); !errors.Is(err, ErrConcurrency) {
		t.Fatalf("expected ErrConcurrency, got %v", err)
	}
}

type conflictingReserver struct{}

func (conflictingReserver) ReserveDisplayNumber(context.Context, string, persistence.Kind) (int64, error) {
	return 0, persistence.ErrConflict
}
