// Package apperr defines the error kinds shared by the booking core.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrSlotConflict = errors.New("slot conflict")
	ErrInvalidDate  = errors.New("invalid date")
	ErrNotFound     = errors.New("not found")
	ErrUpstream     = errors.New("upstream failure")
)

// FieldError reports a single caller-correctable field problem.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e FieldError) Unwrap() error {
	return ErrInvalidInput
}

func Field(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSlotConflict, fmt.Sprintf(format, args...))
}

func InvalidDate(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDate, fmt.Sprintf(format, args...))
}

func NotFound(resource string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, resource, id)
}

// Upstream marks err as a persistence or sink failure. Errors that already
// carry a kind are returned unchanged so a wrapped NotFound stays a NotFound.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}

// Kind returns the sentinel kind carried by err, or nil for unclassified errors.
func Kind(err error) error {
	for _, kind := range []error{ErrInvalidInput, ErrSlotConflict, ErrInvalidDate, ErrNotFound, ErrUpstream} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func HTTPStatus(err error) int {
	switch Kind(err) {
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrSlotConflict:
		return http.StatusConflict
	case ErrInvalidDate:
		return http.StatusUnprocessableEntity
	case ErrNotFound:
		return http.StatusNotFound
	case ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
