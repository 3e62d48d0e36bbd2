package application

import (
	"time"

	"github.com/example/taskhub/internal/persistence"
	"github.com/example/taskhub/internal/recurrence"
)

// CreateScheduleParams captures a request to create a master record.
// Recurrence nil means a one-shot record.
type CreateScheduleParams struct {
	OwnerID         string
	Title           string
	Description     string
	Start           time.Time
	Location        *string
	ReminderMinutes *int
	CategoryID      *string
	Recurrence      *recurrence.Rule
}

// ScheduleResult is a master record and the instances materialized from it.
type ScheduleResult struct {
	Master    persistence.Record
	Instances []persistence.Record
}

// RangeParams bounds an occurrence query. Both ends are inclusive.
type RangeParams struct {
	OwnerID string
	Start   time.Time
	End     time.Time
}
