// Package errors provides structured error types for the Rollcall system.
// All errors carry a category and code so callers can translate them into
// user-facing outcomes without string matching.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryRegistry   ErrorCategory = "REGISTRY"
	ErrCategoryRoster     ErrorCategory = "ROSTER"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidPrincipal = "INVALID_PRINCIPAL"
	CodeInvalidEventID   = "INVALID_EVENT_ID"

	// Registry codes
	CodeEventNotFound = "EVENT_NOT_FOUND"
	CodeForbidden     = "FORBIDDEN"
	CodeQueryFailed   = "QUERY_FAILED"

	// Roster codes
	CodeRosterMissing     = "ROSTER_MISSING"
	CodeRosterWriteFailed = "ROSTER_WRITE_FAILED"
	CodeRosterReadFailed  = "ROSTER_READ_FAILED"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// RollcallError is the structured error type used throughout the system.
type RollcallError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
}

// Error returns a formatted error string.
func (e *RollcallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *RollcallError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *RollcallError) Is(target error) bool {
	var t *RollcallError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new RollcallError.
func New(category ErrorCategory, code, message string) *RollcallError {
	return &RollcallError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap creates a new RollcallError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *RollcallError {
	return &RollcallError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a RollcallError.
func GetCategory(err error) ErrorCategory {
	var re *RollcallError
	if errors.As(err, &re) {
		return re.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a RollcallError.
func GetCode(err error) string {
	var re *RollcallError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsNotFound reports whether err means the referenced event does not exist.
func IsNotFound(err error) bool {
	return GetCode(err) == CodeEventNotFound
}

// IsForbidden reports whether err means the requester is not the event owner.
func IsForbidden(err error) bool {
	return GetCode(err) == CodeForbidden
}

// IsInconsistent reports whether err means an indexed event has no readable
// roster artifact. This indicates a prior partial failure, not caller error.
func IsInconsistent(err error) bool {
	return GetCode(err) == CodeRosterMissing
}

// Convenience constructors for common errors.

func NewNotFoundError(eventID int64) *RollcallError {
	return New(ErrCategoryRegistry, CodeEventNotFound, fmt.Sprintf("event %d does not exist", eventID))
}

func NewForbiddenError(eventID int64) *RollcallError {
	return New(ErrCategoryRegistry, CodeForbidden, fmt.Sprintf("requester is not the owner of event %d", eventID))
}

func NewRegistryError(code, message string, cause error) *RollcallError {
	return Wrap(ErrCategoryRegistry, code, message, cause)
}

func NewRosterError(code, message string, cause error) *RollcallError {
	return Wrap(ErrCategoryRoster, code, message, cause)
}

func NewStorageError(code, message string, cause error) *RollcallError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *RollcallError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
