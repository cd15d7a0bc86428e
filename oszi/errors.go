package oszi

import "errors"

// Errors returned by Session operations. They are wrapped with context,
// so test for them with errors.Is.
var (
	// ErrNotConnected is returned when the transport is not open
	ErrNotConnected = errors.New("data port is not open")
	// ErrTimeout is returned when the instrument did not answer in time
	ErrTimeout = errors.New("timed out waiting for device response")
	// ErrMalformed is returned when a response could not be parsed
	ErrMalformed = errors.New("malformed device response")
	// ErrOutOfRange is returned for parameters rejected before any I/O
	ErrOutOfRange = errors.New("parameter out of range")
)
