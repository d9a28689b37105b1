// Package apperr holds the error taxonomy shared by the engine and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrUnauthorized      = errors.New("not authorized for this report")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidState      = errors.New("invalid evidence state")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrLimitExceeded     = errors.New("limit exceeded")
)

// ValidationError carries field-level detail and matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a single-field validation error.
func Invalid(field, reason string) error {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// Fields returns the field map of a validation error, or nil.
func Fields(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// Wrap attaches context to a sentinel so errors.Is keeps working.
func Wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
