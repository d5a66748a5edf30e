package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a record does not exist, or exists but is
	// outside the scope of the lookup (for example another user's order).
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write would duplicate a unique field or
	// break a reference between records.
	ErrConflict = errors.New("record conflicts with existing data")
)
