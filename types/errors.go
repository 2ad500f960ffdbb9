package types

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or missing input. It is never worth
// retrying; the caller must fix the request.
type ValidationError struct {
	msg string
}

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.msg }

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	msg string
}

// NewNotFoundError creates a NotFoundError with a formatted message.
func NewNotFoundError(format string, args ...any) *NotFoundError {
	return &NotFoundError{msg: fmt.Sprintf(format, args...)}
}

func (e *NotFoundError) Error() string { return e.msg }

// ConflictError reports that an identity tuple already has a row. The caller
// may retry with a new identity or treat the failure as terminal.
type ConflictError struct {
	msg string
}

// NewConflictError creates a ConflictError with a formatted message.
func NewConflictError(format string, args ...any) *ConflictError {
	return &ConflictError{msg: fmt.Sprintf(format, args...)}
}

func (e *ConflictError) Error() string { return e.msg }

// DuplicateError reports that a user with the same email already exists.
type DuplicateError struct {
	msg string
}

// NewDuplicateError creates a DuplicateError with a formatted message.
func NewDuplicateError(format string, args ...any) *DuplicateError {
	return &DuplicateError{msg: fmt.Sprintf(format, args...)}
}

func (e *DuplicateError) Error() string { return e.msg }

// UnavailableError reports a transient failure of the underlying table.
// It wraps the backend error and is safe to retry with backoff.
type UnavailableError struct {
	msg string
	err error
}

// NewUnavailableError creates an UnavailableError wrapping the backend error.
func NewUnavailableError(msg string, err error) *UnavailableError {
	return &UnavailableError{msg: msg, err: err}
}

func (e *UnavailableError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *UnavailableError) Unwrap() error { return e.err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsDuplicate reports whether err is a DuplicateError.
func IsDuplicate(err error) bool {
	var target *DuplicateError
	return errors.As(err, &target)
}

// IsUnavailable reports whether err is an UnavailableError.
func IsUnavailable(err error) bool {
	var target *UnavailableError
	return errors.As(err, &target)
}
