package query

import (
	"errors"
	"fmt"
)

// BackendError is a failure to compile or run a physical scan. It wraps
// the cause and is never retried.
type BackendError struct {
	// Source is "live" or "archive".
	Source string
	// Op is the failing step: "compile" or "execute".
	Op  string
	Err error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("backend access failure: %s %s scan: %v", e.Op, e.Source, e.Err)
}

// Unwrap returns the cause.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// UsageError reports a query the caller built incorrectly, such as a
// negative limit or a column that was not selected. It is raised before
// any scan runs.
type UsageError struct {
	Message string
}

// Error implements the error interface.
func (e *UsageError) Error() string {
	return "query usage: " + e.Message
}

func usagef(format string, args ...any) *UsageError {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// IsBackendError returns true if err is or wraps a *BackendError.
// Uses errors.As to handle wrapped errors.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// IsUsageError returns true if err is or wraps a *UsageError.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}
