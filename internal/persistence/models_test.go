package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/taskhub/internal/recurrence"
)

func TestRecordInstance(t *testing.T) {
	t.Parallel()

	location := "Room 4"
	reminder := 15
	category := "cat-1"
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	master := Record{
		ID:              "master-1",
		OwnerID:         "owner-1",
		Kind:            KindEvent,
		DisplayNumber:   7,
		Title:           "Standup",
		Description:     "daily sync",
		OccurrenceTime:  time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		Location:        &location,
		ReminderMinutes: &reminder,
		CategoryID:      &category,
		IsMaster:        true,
		Recurrence:      &recurrence.Rule{Pattern: recurrence.PatternDaily, EndDate: &end},
	}
	at := master.OccurrenceTime.AddDate(0, 0, 1)

	instance := master.Instance(at, 8)

	assert.Empty(t, instance.ID)
	assert.Equal(t, int64(8), instance.DisplayNumber)
	assert.Equal(t, at, instance.OccurrenceTime)
	assert.False(t, instance.IsMaster)
	assert.Nil(t, instance.Recurrence)
	require.NotNil(t, instance.MasterID)
	assert.Equal(t, "master-1", *instance.MasterID)
	assert.Equal(t, master.Title, instance.Title)
	assert.Equal(t, master.Description, instance.Description)
	assert.Equal(t, *master.Location, *instance.Location)
	assert.Equal(t, *master.ReminderMinutes, *instance.ReminderMinutes)
	assert.Equal(t, *master.CategoryID, *instance.CategoryID)

	// copies must not alias the master
	location = "changed"
	assert.Equal(t, "Room 4", *instance.Location)
	assert.True(t, master.IsRecurring())
	assert.False(t, instance.IsRecurring())
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	kind, err := ParseKind(" Habit ")
	require.NoError(t, err)
	assert.Equal(t, KindHabit, kind)

	_, err = ParseKind("project")
	assert.Error(t, err)
}

func TestRecordClone(t *testing.T) {
	t.Parallel()

	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	masterID := "m"
	original := Record{MasterID: &masterID, Recurrence: &recurrence.Rule{Pattern: recurrence.PatternWeekly, EndDate: &end}}

	clone := original.Clone()
	*clone.MasterID = "other"
	*clone.Recurrence.EndDate = end.AddDate(1, 0, 0)

	assert.Equal(t, "m", *original.MasterID)
	assert.Equal(t, end, *original.Recurrence.EndDate)
}
