package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStaleState means another writer changed the row between read and write.
	ErrStaleState = errors.New("state changed concurrently")
)

// GuardViolation rejects a transition whose precondition does not hold.
// Nothing is mutated when one is returned.
type GuardViolation struct {
	Message string
}

func (e *GuardViolation) Error() string { return e.Message }

// Guardf builds a GuardViolation with a formatted message.
func Guardf(format string, args ...any) error {
	return &GuardViolation{Message: fmt.Sprintf(format, args...)}
}

// LookupFailure reports that an external collaborator had no record, or
// could not answer, for something a guard needed.
type LookupFailure struct {
	Service string
	Message string
	Err     error
}

func (e *LookupFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LookupFailure) Unwrap() error { return e.Err }

// Lookupf builds a LookupFailure attributed to service.
func Lookupf(service string, err error, format string, args ...any) error {
	return &LookupFailure{Service: service, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsGuard reports whether err carries a GuardViolation.
func IsGuard(err error) bool {
	var g *GuardViolation
	return errors.As(err, &g)
}

// IsLookup reports whether err carries a LookupFailure.
func IsLookup(err error) bool {
	var l *LookupFailure
	return errors.As(err, &l)
}
