package prefs

import "errors"

var (
	// ErrInvalidScope is returned when the recipient/scope combination is
	// ambiguous: both a user and a team were given, or neither, in a context
	// that requires exactly one.
	ErrInvalidScope = errors.New("invalid scope: exactly one of user or team is required")

	// ErrInvalidValueForType is returned when a caller attempts to write a
	// value that the alert type's compatibility table does not permit.
	ErrInvalidValueForType = errors.New("value is not valid for alert type")

	// ErrStorage wraps storage-layer failures that survived local retries.
	ErrStorage = errors.New("notification settings storage failure")
)
