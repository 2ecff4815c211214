// internal/backend/errors.go
package backend

import (
	"errors"
	"fmt"
)

// ErrorClass tells the applier whether retrying can help.
type ErrorClass int

const (
	// ClassPermanent covers validation, conflict and permission
	// failures. Retrying will not change the outcome.
	ClassPermanent ErrorClass = iota

	// ClassTransient covers network, timeout and throttling
	// failures. The applier retries these with backoff.
	ClassTransient
)

func (c ErrorClass) String() string {
	if c == ClassTransient {
		return "transient"
	}
	return "permanent"
}

// Error is an adapter failure carrying its retry classification.
type Error struct {
	Class ErrorClass
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Err, e.Class)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure.
func Transient(op string, err error) *Error {
	return &Error{Class: ClassTransient, Op: op, Err: err}
}

// Permanent wraps err as a non-retryable failure.
func Permanent(op string, err error) *Error {
	return &Error{Class: ClassPermanent, Op: op, Err: err}
}

// IsTransient reports whether err is classified as retryable.
// Unclassified errors are treated as permanent, so an adapter that
// forgets to classify never triggers a retry storm.
func IsTransient(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Class == ClassTransient
}
