package storage

import "errors"

// Named error kinds surfaced by every store implementation. Callers branch on
// these with errors.Is instead of sniffing driver-specific codes.
var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict means a conditional write lost: the record already holds a
	// state that forbids the requested transition.
	ErrConflict = errors.New("conflicting state")

	// ErrUnavailable means the backing store could not be reached.
	ErrUnavailable = errors.New("store unavailable")
)
