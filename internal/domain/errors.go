package domain

import "errors"

// Validation errors shared across domain entities.
var (
	// ErrUnknownProvider is returned when a provider value is not one of the
	// two known task providers.
	ErrUnknownProvider = errors.New("unknown task provider")

	// ErrEmptyTaskID is returned when an external task ID is empty or blank.
	ErrEmptyTaskID = errors.New("external task ID cannot be empty")

	// ErrEmptyUserUPN is returned when a user principal name is empty or blank.
	ErrEmptyUserUPN = errors.New("user principal name cannot be empty")
)
