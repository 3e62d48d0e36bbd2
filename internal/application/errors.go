package application

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced owner, category or record does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrOwnership is returned when a record or category belongs to another owner.
	ErrOwnership = errors.New("application: resource belongs to another owner")
	// ErrConcurrency is returned when no unique display number could be
	// obtained within the retry budget. Nothing was committed, so the caller
	// may retry the whole operation.
	ErrConcurrency = errors.New("application: display number allocation contended")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// MaterializationError reports that the master was written but its instances
// could not be. The unit of work is rolled back, so the master is not
// visible afterwards; the error stays distinct so callers can tell it apart
// from a validation or lookup failure.
type MaterializationError struct {
	MasterID  string
	Instances int
	Err       error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("application: persist %d instances of master %s: %v", e.Instances, e.MasterID, e.Err)
}

func (e *MaterializationError) Unwrap() error {
	return e.Err
}
