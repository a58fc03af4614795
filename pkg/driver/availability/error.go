// Package availability holds the errors stream backends use to tell the
// configuration core why a device could not be opened.
package availability

import (
	"errors"
	"fmt"
)

var (
	ErrUnimplemented = NewError("not implemented")
	ErrBusy          = NewError("device or resource busy")
	ErrNoDevice      = NewError("no such device")
)

type errorString struct {
	s string
}

func NewError(text string) error {
	return &errorString{text}
}

// IsError reports whether err is, or wraps, one of the availability errors.
func IsError(err error) bool {
	var target *errorString
	var over *OverconstrainedError
	var notReadable *NotReadableError
	return errors.As(err, &target) || errors.As(err, &over) || errors.As(err, &notReadable)
}

func (e *errorString) Error() string {
	return e.s
}

// OverconstrainedError means no stream could satisfy Constraint.
type OverconstrainedError struct {
	Constraint string
}

func (e *OverconstrainedError) Error() string {
	return fmt.Sprintf("constraint %q cannot be satisfied", e.Constraint)
}

// NotReadableError means the device exists but could not be read, usually
// because another consumer holds it.
type NotReadableError struct {
	Err error
}

func (e *NotReadableError) Error() string {
	if e.Err == nil {
		return "device is not readable"
	}
	return fmt.Sprintf("device is not readable: %v", e.Err)
}

func (e *NotReadableError) Unwrap() error { return e.Err }
