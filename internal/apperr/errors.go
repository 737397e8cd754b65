// Package apperr holds the error classes shared by every layer. Domain packages wrap
// these sentinels so the HTTP layer can map any error to a status code with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("permission denied")
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUpstream        = errors.New("upstream error")
	ErrConfiguration   = errors.New("configuration error")
)

// Validation returns an error of class ErrValidation carrying a client-facing message.
func Validation(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return ErrValidation }
