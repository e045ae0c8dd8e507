package transport

import (
	"errors"
	"fmt"
)

// ErrUnavailable means the upstream site could not be reached or answered
// with an error status.
var ErrUnavailable = errors.New("upstream unavailable")

// StatusError is an HTTP error status from the upstream site.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d", e.URL, e.Code)
}

// Is reports StatusError as ErrUnavailable.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnavailable
}

func (e *StatusError) retryable() bool {
	return e.Code >= 500 || e.Code == 429
}
