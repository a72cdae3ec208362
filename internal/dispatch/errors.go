package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineUnavailable means the requested engine was not in the
	// readiness table when the request arrived.
	ErrEngineUnavailable = errors.New("engine not available")

	// ErrTimeout means no terminal marker appeared within the wait budget.
	// The worker may still finish the job afterwards; Cleanup runs on this
	// path too, so whatever exists by then is removed.
	ErrTimeout = errors.New("synthesis timed out")

	// ErrArtifactMissing means the success marker exists but the output
	// audio does not. Always a server fault, never the caller's.
	ErrArtifactMissing = errors.New("output artifact missing")

	// ErrSynthesisFailed wraps the worker-reported failure message.
	ErrSynthesisFailed = errors.New("synthesis failed")
)

// ValidationError is a caller fault caught before any file I/O happens.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a caller fault.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
