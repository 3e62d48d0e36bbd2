package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/taskhub/internal/persistence"
	"github.com/example/taskhub/internal/sequence"
)

// SequenceService hands out display numbers for kinds that are created
// outside the schedule flow.
type SequenceService struct {
	owners    persistence.RecordReader
	allocator *sequence.Allocator
	logger    *slog.Logger
}

// NewSequenceService wires dependencies for display number allocation.
func NewSequenceService(owners persistence.RecordReader, allocator *sequence.Allocator, logger *slog.Logger) *SequenceService {
	return &SequenceService{owners: owners, allocator: allocator, logger: defaultLogger(logger)}
}

// Next returns the next display number for (ownerID, kind).
func (s *SequenceService) Next(ctx context.Context, ownerID string, kind persistence.Kind) (int64, error) {
	if s == nil || s.owners == nil || s.allocator == nil {
		return 0, fmt.Errorf("SequenceService is not configured")
	}
	logger := serviceLogger(ctx, s.logger, "SequenceService", "Next", "owner_id", ownerID, "kind", kind)

	if !kind.Valid() {
		vErr := &ValidationError{}
		vErr.add("kind", fmt.Sprintf("unknown kind %q", kind))
		logFailure(ctx, logger, "display number rejected", vErr)
		return 0, vErr
	}

	if _, err := s.owners.FindOwnerByID(ctx, ownerID); err != nil {
		err = mapStoreError(err)
		logFailure(ctx, logger, "display number rejected", err)
		return 0, err
	}

	number, err := s.allocator.Next(ctx, ownerID, kind)
	if err != nil {
		err = mapStoreError(err)
		logFailure(ctx, logger, "display number allocation failed", err)
		return 0, err
	}

	logger.DebugContext(ctx, "display number allocated", "display_number", number)
	return number, nil
}
