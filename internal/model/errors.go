// internal/model/errors.go
package model

import (
	"errors"
	"strings"
)

// ValidationError is the fatal pre-pass error: the desired state (or
// the plan derived from it) cannot be reconciled. No backend call is
// made once one is raised.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid desired state: " + e.Problems[0]
	}
	return "invalid desired state: " + strings.Join(e.Problems, "; ")
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
