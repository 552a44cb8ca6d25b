package ports

import "errors"

// Common infrastructure errors that can occur during external tool
// interactions.
var (
	// ErrConverterUnavailable indicates that the conversion tool could
	// not be found or is not executable in the current environment.
	ErrConverterUnavailable = errors.New("converter unavailable")

	// ErrTimeout indicates that a conversion exceeded its per-item
	// time limit. It is handled identically to any other per-item
	// conversion failure.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidOutput indicates that the conversion tool produced
	// output that could not be interpreted.
	ErrInvalidOutput = errors.New("invalid converter output")
)
