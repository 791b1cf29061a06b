package store

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotPersisted marks a mutation that was applied in memory but whose
	// snapshot flush failed. The change stays visible to readers.
	ErrNotPersisted = errors.New("persisted in memory only")
)
