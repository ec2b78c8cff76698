package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes replica errors.
type ErrorCode string

const (
	// ErrCodeValidation marks a malformed triple or operation. Nothing was applied.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodePersistence marks a failed durable write. The in-memory state
	// was applied and stays authoritative; durability is at risk.
	ErrCodePersistence ErrorCode = "PERSISTENCE"

	// ErrCodeNotFound marks a mutation on an entity that does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Error is returned by replica mutations.
//
// Merge conflicts are never errors: the LWW rule always resolves them.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the failing operation ("apply", "toggle", "open", ...).
	Op string

	// Message is a human-readable description.
	Message string

	// Index is the offending triple's position for validation errors, or -1.
	Index int

	// Field is the offending field for validation errors.
	Field string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	if e.Index >= 0 && e.Field != "" {
		msg = fmt.Sprintf("%s: %s: triple %d: %s: %s", e.Code, e.Op, e.Index, e.Field, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsValidationError reports whether err is (or wraps) a validation error.
func IsValidationError(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsPersistenceError reports whether err is (or wraps) a persistence error.
func IsPersistenceError(err error) bool {
	return hasCode(err, ErrCodePersistence)
}

// IsNotFound reports whether err is (or wraps) a not-found error.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// NewValidationError creates a validation error for the triple at index.
func NewValidationError(op string, index int, field, message string) *Error {
	return &Error{Code: ErrCodeValidation, Op: op, Index: index, Field: field, Message: message}
}

// NewPersistenceError wraps a storage failure.
func NewPersistenceError(op string, err error) *Error {
	return &Error{Code: ErrCodePersistence, Op: op, Index: -1, Message: "write failed", Err: err}
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(op, id string) *Error {
	return &Error{Code: ErrCodeNotFound, Op: op, Index: -1, Message: fmt.Sprintf("entity %q not found", id)}
}
