package store

import "errors"

var (
	// ErrNotConfigured indicates required database settings are absent.
	// Returned before any connection attempt is made.
	ErrNotConfigured = errors.New("store: database configuration missing")

	// ErrAlreadyExists indicates a unique-constraint violation on insert.
	ErrAlreadyExists = errors.New("store: video already exists")

	// ErrNotFound indicates an operation targeted an absent record.
	// Lookups return (nil, nil) instead; only mutations use this.
	ErrNotFound = errors.New("store: video not found")

	// ErrInvalidTransition indicates a status update that is not allowed
	// by the transition table.
	ErrInvalidTransition = errors.New("store: illegal status transition")
)
