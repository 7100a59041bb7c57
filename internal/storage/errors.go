package storage

import "errors"

// Storage errors.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCorrupt is returned when a stored checkpoint cannot be parsed.
	ErrCorrupt = errors.New("corrupt checkpoint")
)
