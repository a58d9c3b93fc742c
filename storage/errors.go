package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation targets a device id that does
// not exist in the registry.
var ErrNotFound = errors.New("not found")

// ValidationError rejects a write that would violate a schema invariant,
// e.g. threshold ordering or an out-of-range reading.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
