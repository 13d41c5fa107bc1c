package storage

import "errors"

// Storage errors shared by every backend.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose slot is already occupied.
	ErrDuplicateKey = errors.New("duplicate key: record slot already occupied")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageFull is returned when the backend cannot allocate another record.
	ErrStorageFull = errors.New("storage full")

	// ErrUnderflow is returned when a debit would take a balance below zero.
	ErrUnderflow = errors.New("balance underflow")

	// ErrOverflow is returned when a credit would exceed the uint64 range.
	ErrOverflow = errors.New("balance overflow")
)
