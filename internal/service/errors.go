package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/templui/habits/internal/validation"
)

// Error kinds shared by every service. Handlers map them to HTTP statuses.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrStore           = errors.New("store error")
	ErrTimeout         = errors.New("timeout")
)

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields []validation.FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("validation: %s %s", e.Fields[0].Field, e.Fields[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Fields))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []validation.FieldError{{Field: field, Message: message}}}
}

// storeError classifies a persistence failure. Deadlines become ErrTimeout,
// everything else ErrStore; the driver error stays in the chain.
func storeError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

// Outcome names the error kind of err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "store"
	}
}
