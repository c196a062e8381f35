package config

import "errors"

var (
	// ErrNilPointer is returned when Load receives a nil target.
	ErrNilPointer = errors.New("config: target must be a non-nil pointer")

	// ErrParsingFailed wraps env parsing failures.
	ErrParsingFailed = errors.New("config: failed to parse environment variables")
)
