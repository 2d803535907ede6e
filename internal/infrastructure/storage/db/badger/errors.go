package dbbadger

import "errors"

var (
	// ErrTooManyConflicts is returned when a read-write transaction keeps
	// conflicting with concurrent ones.
	ErrTooManyConflicts = errors.New("too many conflicting transactions, retry later")
)
