package storage

import "errors"

// Storage errors shared by every backend.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key already exists.
	// Accounts are never re-created and events are append-only.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrConflict is returned when an update was computed from an account
	// version that another writer has since replaced.
	ErrConflict = errors.New("write conflict")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
