package domain

import "errors"

// Domain errors returned by the queue engine and repositories.

var (
	// ErrInvalidInput indicates a caller-supplied value failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrJobNotFound indicates the requested job does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrTransient indicates database contention (serialization conflict,
	// lock timeout, pool exhaustion). Callers retry on the next poll tick.
	ErrTransient = errors.New("transient database error")
)
