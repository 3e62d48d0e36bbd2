package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a primary key already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConflict marks a transient collision: the database was busy or a
	// display number was taken by a concurrent writer. Callers may retry.
	ErrConflict = errors.New("persistence: conflict")
	// ErrForeignKeyViolation is returned when a referenced row is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrConstraintViolation is returned for other rejected rows.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)
