package service

import "errors"

// Sentinel errors surfaced to the transport layer for status mapping.
var (
	// ErrNotFound is returned when the requested subject does not exist
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when the request payload fails domain
	// validation
	ErrValidation = errors.New("validation failed")

	// ErrOverlap is returned when an overtime request intersects an open
	// request for one of its workers
	ErrOverlap = errors.New("overlapping overtime request exists")

	// ErrInvalidState is returned when an operation does not apply to the
	// subject's current status
	ErrInvalidState = errors.New("invalid state for operation")
)
