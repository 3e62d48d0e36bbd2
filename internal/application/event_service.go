package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/taskhub/internal/persistence"
	"github.com/example/taskhub/internal/recurrence"
	"github.com/example/taskhub/internal/sequence"
)

const eventServiceName = "EventService"

// EventService materializes recurring schedules: it numbers and stores the
// master, expands its rule and stores one numbered instance per occurrence,
// all in one unit of work.
type EventService struct {
	store     persistence.RecordStore
	allocator *sequence.Allocator
	logger    *slog.Logger
	now       func() time.Time
}

// NewEventService wires dependencies for schedule operations.
func NewEventService(store persistence.RecordStore, allocator *sequence.Allocator, logger *slog.Logger, now func() time.Time) *EventService {
	if now == nil {
		now = time.Now
	}
	return &EventService{
		store:     store,
		allocator: allocator,
		logger:    defaultLogger(logger),
		now:       now,
	}
}

// CreateSchedule stores a master record and, when a rule is supplied, every
// instance the rule expands to. Either everything is committed or nothing is.
func (s *EventService) CreateSchedule(ctx context.Context, params CreateScheduleParams) (ScheduleResult, error) {
	if s == nil || s.store == nil || s.allocator == nil {
		return ScheduleResult{}, fmt.Errorf("EventService is not configured")
	}
	logger := serviceLogger(ctx, s.logger, eventServiceName, "CreateSchedule", "owner_id", params.OwnerID)

	if vErr := validateCreate(params); vErr.HasErrors() {
		logFailure(ctx, logger, "create schedule rejected", vErr)
		return ScheduleResult{}, vErr
	}

	var result ScheduleResult
	err := s.allocator.Policy().Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.createInTx(ctx, params)
		return err
	})
	if err != nil {
		err = s.mapError(err)
		logFailure(ctx, logger, "create schedule failed", err)
		return ScheduleResult{}, err
	}

	logger.InfoContext(ctx, "schedule created",
		"record_id", result.Master.ID,
		"display_number", result.Master.DisplayNumber,
		"instances", len(result.Instances))
	return result, nil
}

func (s *EventService) createInTx(ctx context.Context, params CreateScheduleParams) (ScheduleResult, error) {
	var result ScheduleResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx persistence.RecordTx) error {
		if err := s.checkReferences(ctx, tx, params); err != nil {
			return err
		}

		allocator := s.allocator.Within(tx)
		number, err := allocator.Next(ctx, params.OwnerID, persistence.KindEvent)
		if err != nil {
			return err
		}

		now := s.now()
		master := persistence.Record{
			OwnerID:         params.OwnerID,
			Kind:            persistence.KindEvent,
			DisplayNumber:   number,
			Title:           strings.TrimSpace(params.Title),
			Description:     params.Description,
			OccurrenceTime:  params.Start,
			Location:        params.Location,
			ReminderMinutes: params.ReminderMinutes,
			CategoryID:      params.CategoryID,
			IsMaster:        true,
			Recurrence:      params.Recurrence,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		master = master.Clone()

		saved, err := tx.Save(ctx, master)
		if err != nil {
			return err
		}
		result = ScheduleResult{Master: saved, Instances: []persistence.Record{}}

		if saved.Recurrence == nil {
			return nil
		}

		var instances []persistence.Record
		for at := range recurrence.Expand(*saved.Recurrence, saved.OccurrenceTime) {
			number, err := allocator.Next(ctx, params.OwnerID, persistence.KindEvent)
			if err != nil {
				return err
			}
			instances = append(instances, saved.Instance(at, number))
		}
		if len(instances) == 0 {
			return nil
		}

		stored, err := tx.SaveAll(ctx, instances)
		if err != nil {
			if errors.Is(err, persistence.ErrConflict) {
				return err
			}
			return &MaterializationError{MasterID: saved.ID, Instances: len(instances), Err: err}
		}
		result.Instances = stored
		return nil
	})
	return result, err
}

// checkReferences fails fast on a missing owner or a foreign category.
func (s *EventService) checkReferences(ctx context.Context, tx persistence.RecordReader, params CreateScheduleParams) error {
	if _, err := tx.FindOwnerByID(ctx, params.OwnerID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("%w: owner %s", ErrNotFound, params.OwnerID)
		}
		return err
	}
	if params.CategoryID == nil {
		return nil
	}
	category, err := tx.FindCategoryByID(ctx, *params.CategoryID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return fmt.Errorf("%w: category %s", ErrNotFound, *params.CategoryID)
		}
		return err
	}
	if category.OwnerID != params.OwnerID {
		return fmt.Errorf("%w: category %s", ErrOwnership, category.ID)
	}
	return nil
}

// DeleteSchedule removes a record owned by ownerID. Deleting a recurring
// master removes its instances in the same unit of work.
func (s *EventService) DeleteSchedule(ctx context.Context, ownerID, recordID string) error {
	if s == nil || s.store == nil || s.allocator == nil {
		return fmt.Errorf("EventService is not configured")
	}
	logger := serviceLogger(ctx, s.logger, eventServiceName, "DeleteSchedule", "owner_id", ownerID, "record_id", recordID)

	removed := 0
	err := s.allocator.Policy().Do(ctx, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx persistence.RecordTx) error {
			record, err := s.ownedRecord(ctx, tx, ownerID, recordID)
			if err != nil {
				return err
			}

			removed = 0
			if record.IsRecurring() {
				instances, err := tx.FindInstancesByMasterID(ctx, record.ID)
				if err != nil {
					return err
				}
				if len(instances) > 0 {
					if err := tx.DeleteAll(ctx, instances); err != nil {
						return err
					}
				}
				removed = len(instances)
			}
			return tx.Delete(ctx, record)
		})
	})
	if err != nil {
		err = s.mapError(err)
		logFailure(ctx, logger, "delete schedule failed", err)
		return err
	}

	logger.InfoContext(ctx, "schedule deleted", "instances_removed", removed)
	return nil
}

// GetSchedule returns a record owned by ownerID together with its
// instances when it is a recurring master.
func (s *EventService) GetSchedule(ctx context.Context, ownerID, recordID string) (ScheduleResult, error) {
	if s == nil || s.store == nil {
		return ScheduleResult{}, fmt.Errorf("EventService is not configured")
	}

	record, err := s.ownedRecord(ctx, s.store, ownerID, recordID)
	if err != nil {
		return ScheduleResult{}, s.mapError(err)
	}

	result := ScheduleResult{Master: record, Instances: []persistence.Record{}}
	if record.IsRecurring() {
		instances, err := s.store.FindInstancesByMasterID(ctx, record.ID)
		if err != nil {
			return ScheduleResult{}, s.mapError(err)
		}
		result.Instances = instances
	}
	return result, nil
}

// OccurrencesInRange lists the owner's event records, masters and
// instances alike, whose occurrence time lies within the inclusive range.
func (s *EventService) OccurrencesInRange(ctx context.Context, params RangeParams) ([]persistence.Record, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("EventService is not configured")
	}

	vErr := &ValidationError{}
	if strings.TrimSpace(params.OwnerID) == "" {
		vErr.add("owner_id", "owner is required")
	}
	if params.Start.IsZero() {
		vErr.add("start_date", "start date is required")
	}
	if params.End.IsZero() {
		vErr.add("end_date", "end date is required")
	}
	if !params.Start.IsZero() && !params.End.IsZero() && params.End.Before(params.Start) {
		vErr.add("end_date", "end date must not be before start date")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	if _, err := s.store.FindOwnerByID(ctx, params.OwnerID); err != nil {
		return nil, s.mapError(err)
	}

	records, err := s.store.ListInRange(ctx, params.OwnerID, persistence.KindEvent, params.Start, params.End)
	if err != nil {
		return nil, s.mapError(err)
	}
	return records, nil
}

func (s *EventService) ownedRecord(ctx context.Context, reader persistence.RecordReader, ownerID, recordID string) (persistence.Record, error) {
	record, err := reader.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Record{}, fmt.Errorf("%w: record %s", ErrNotFound, recordID)
		}
		return persistence.Record{}, err
	}
	if record.OwnerID != ownerID {
		return persistence.Record{}, fmt.Errorf("%w: record %s", ErrOwnership, recordID)
	}
	return record, nil
}

func (s *EventService) mapError(err error) error {
	return mapStoreError(err)
}

func validateCreate(params CreateScheduleParams) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(params.OwnerID) == "" {
		vErr.add("owner_id", "owner is required")
	}
	if strings.TrimSpace(params.Title) == "" {
		vErr.add("title", "event title is required")
	}
	if params.Start.IsZero() {
		vErr.add("event_date_time", "event date and time is required")
	}
	if params.ReminderMinutes != nil && *params.ReminderMinutes < 0 {
		vErr.add("reminder_minutes", "reminder must not be negative")
	}
	if rule := params.Recurrence; rule != nil {
		if err := rule.Validate(); err != nil {
			vErr.add("recurring_pattern", "recurring pattern is not supported")
		}
	}
	return vErr
}

// mapStoreError translates persistence and allocation errors into the
// application taxonomy. Errors already in the taxonomy pass through.
func mapStoreError(err error) error {
	var (
		vErr *ValidationError
		mErr *MaterializationError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &vErr), errors.As(err, &mErr),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrOwnership), errors.Is(err, ErrConcurrency):
		return err
	case errors.Is(err, sequence.ErrExhausted), errors.Is(err, persistence.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConcurrency, err)
	case errors.Is(err, sequence.ErrInvalidRequest):
		invalid := &ValidationError{}
		invalid.add("kind", err.Error())
		return invalid
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, persistence.ErrForeignKeyViolation):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
