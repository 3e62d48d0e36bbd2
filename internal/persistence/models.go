package persistence

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/taskhub/internal/recurrence"
)

// Kind namespaces display numbers. Numbers are unique per (owner, kind).
type Kind string

const (
	KindEvent Kind = "event"
	KindTask  Kind = "task"
	KindHabit Kind = "habit"
	KindNote  Kind = "note"
	KindItem  Kind = "item"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindEvent, KindTask, KindHabit, KindNote, KindItem}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	for _, candidate := range Kinds {
		if k == candidate {
			return true
		}
	}
	return false
}

// ParseKind resolves a kind tag case-insensitively.
func ParseKind(value string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	if !kind.Valid() {
		return "", fmt.Errorf("persistence: unknown kind %q", value)
	}
	return kind, nil
}

// Owner is the external user that owns records.
type Owner struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
}

// Category groups records for an owner.
type Category struct {
	ID        string
	OwnerID   string
	Name      string
	Color     *string
	CreatedAt time.Time
}

// Record is a scheduled entry: either a master created by a user or an
// instance materialized from a master's recurrence rule.
type Record struct {
	ID              string
	OwnerID         string
	Kind            Kind
	DisplayNumber   int64
	Title           string
	Description     string
	OccurrenceTime  time.Time
	Location        *string
	ReminderMinutes *int
	CategoryID      *string
	IsMaster        bool
	MasterID        *string
	// Recurrence is nil for one-shot records and for instances.
	Recurrence *recurrence.Rule
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsRecurring reports whether the record is a master carrying a rule.
func (r Record) IsRecurring() bool {
	return r.IsMaster && r.Recurrence != nil
}

// Instance builds an occurrence of r at the given time. Every non-recurrence
// field is copied verbatim; the copy is never re-synced with the master.
func (r Record) Instance(at time.Time, number int64) Record {
	masterID := r.ID
	return Record{
		OwnerID:         r.OwnerID,
		Kind:            r.Kind,
		DisplayNumber:   number,
		Title:           r.Title,
		Description:     r.Description,
		OccurrenceTime:  at,
		Location:        cloneString(r.Location),
		ReminderMinutes: cloneInt(r.ReminderMinutes),
		CategoryID:      cloneString(r.CategoryID),
		IsMaster:        false,
		MasterID:        &masterID,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	out.Location = cloneString(r.Location)
	out.ReminderMinutes = cloneInt(r.ReminderMinutes)
	out.CategoryID = cloneString(r.CategoryID)
	out.MasterID = cloneString(r.MasterID)
	if r.Recurrence != nil {
		rule := *r.Recurrence
		if rule.EndDate != nil {
			end := *rule.EndDate
			rule.EndDate = &end
		}
		out.Recurrence = &rule
	}
	return out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	copy := *v
	return &copy
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	copy := *v
	return &copy
}
