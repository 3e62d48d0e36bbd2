package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/taskhub/internal/application"
	"github.com/example/taskhub/internal/persistence"
	"github.com/example/taskhub/internal/recurrence"
)

// localLayouts are accepted for timestamps without a zone.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTimestamp accepts RFC 3339 or a zone-less local form read in loc.
func parseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", value)
}

type eventRequest struct {
	Title             string  `json:"title"`
	Description       string  `json:"description"`
	EventDateTime     string  `json:"eventDateTime"`
	Location          *string `json:"location"`
	ReminderMinutes   *int    `json:"reminderMinutes"`
	CategoryID        *string `json:"categoryId"`
	IsRecurring       bool    `json:"isRecurring"`
	RecurringPattern  string  `json:"recurringPattern"`
	RecurringInterval *int    `json:"recurringInterval"`
	RecurringEndDate  string  `json:"recurringEndDate"`
}

func (req eventRequest) toParams(ownerID string, loc *time.Location) (application.CreateScheduleParams, error) {
	params := application.CreateScheduleParams{
		OwnerID:         ownerID,
		Title:           req.Title,
		Description:     req.Description,
		Location:        req.Location,
		ReminderMinutes: req.ReminderMinutes,
		CategoryID:      req.CategoryID,
	}

	if strings.TrimSpace(req.EventDateTime) != "" {
		start, err := parseTimestamp(req.EventDateTime, loc)
		if err != nil {
			return params, fieldError("event_date_time", err.Error())
		}
		params.Start = start
	}

	if !req.IsRecurring || strings.TrimSpace(req.RecurringPattern) == "" {
		return params, nil
	}

	pattern, err := recurrence.ParsePattern(req.RecurringPattern)
	if err != nil {
		return params, fieldError("recurring_pattern", "recurring pattern is not supported")
	}
	rule := &recurrence.Rule{Pattern: pattern}
	if req.RecurringInterval != nil {
		rule.Interval = *req.RecurringInterval
	}
	if strings.TrimSpace(req.RecurringEndDate) != "" {
		end, err := parseTimestamp(req.RecurringEndDate, loc)
		if err != nil {
			return params, fieldError("recurring_end_date", err.Error())
		}
		rule.EndDate = &end
	}
	params.Recurrence = rule
	return params, nil
}

type eventDTO struct {
	ID                string     `json:"id"`
	EventNumber       int64      `json:"eventNumber"`
	OwnerID           string     `json:"ownerId"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	EventDateTime     time.Time  `json:"eventDateTime"`
	Location          *string    `json:"location,omitempty"`
	ReminderMinutes   *int       `json:"reminderMinutes,omitempty"`
	CategoryID        *string    `json:"categoryId,omitempty"`
	IsMaster          bool       `json:"isMaster"`
	IsRecurring       bool       `json:"isRecurring"`
	RecurringPattern  string     `json:"recurringPattern,omitempty"`
	RecurringInterval int        `json:"recurringInterval,omitempty"`
	RecurringEndDate  *time.Time `json:"recurringEndDate,omitempty"`
	MasterEventID     *string    `json:"masterEventId,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func toEventDTO(record persistence.Record, loc *time.Location) eventDTO {
	dto := eventDTO{
		ID:              record.ID,
		EventNumber:     record.DisplayNumber,
		OwnerID:         record.OwnerID,
		Title:           record.Title,
		Description:     record.Description,
		EventDateTime:   record.OccurrenceTime.In(loc),
		Location:        record.Location,
		ReminderMinutes: record.ReminderMinutes,
		CategoryID:      record.CategoryID,
		IsMaster:        record.IsMaster,
		IsRecurring:     record.IsRecurring(),
		MasterEventID:   record.MasterID,
		CreatedAt:       record.CreatedAt.In(loc),
		UpdatedAt:       record.UpdatedAt.In(loc),
	}
	if rule := record.Recurrence; rule != nil {
		dto.RecurringPattern = rule.Pattern.String()
		dto.RecurringInterval = rule.Step()
		if rule.EndDate != nil {
			end := rule.EndDate.In(loc)
			dto.RecurringEndDate = &end
		}
	}
	return dto
}

func toEventDTOs(records []persistence.Record, loc *time.Location) []eventDTO {
	out := make([]eventDTO, 0, len(records))
	for _, record := range records {
		out = append(out, toEventDTO(record, loc))
	}
	return out
}

type scheduleDTO struct {
	Master    eventDTO   `json:"master"`
	Instances []eventDTO `json:"instances"`
}

func toScheduleDTO(result application.ScheduleResult, loc *time.Location) scheduleDTO {
	return scheduleDTO{
		Master:    toEventDTO(result.Master, loc),
		Instances: toEventDTOs(result.Instances, loc),
	}
}

type sequenceDTO struct {
	OwnerID       string `json:"ownerId"`
	Kind          string `json:"kind"`
	DisplayNumber int64  `json:"displayNumber"`
}
