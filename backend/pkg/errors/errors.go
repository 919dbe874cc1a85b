package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeStore represents entity store transport or query failures
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeNotFound represents a missing entity on a write path
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeValidation represents rejected caller input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeAuth represents session/token errors at the HTTP boundary
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Kind returns the error category. Embedding types inherit it.
func (e *BaseError) Kind() ErrorType {
	return e.Type
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Store Errors

// ErrStoreFailure is returned when the persistence backend fails.
// Step names the part of a multi-step write that failed (e.g. "node", "spatial_index").
type ErrStoreFailure struct {
	*BaseError
	Op   string
	Step string
}

func NewStoreFailure(op, step string, err error) *ErrStoreFailure {
	msg := fmt.Sprintf("%s failed", op)
	if step != "" {
		msg = fmt.Sprintf("%s failed at step %s", op, step)
	}
	return &ErrStoreFailure{
		BaseError: NewBaseError(ErrorTypeStore, msg, err),
		Op:        op,
		Step:      step,
	}
}

// ErrUserNotFound is returned when a write targets a user that does not exist
type ErrUserNotFound struct {
	*BaseError
	UserID string
}

func NewUserNotFound(userID string) *ErrUserNotFound {
	return &ErrUserNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("user not found: %s", userID), nil),
		UserID:    userID,
	}
}

// ErrPostNotFound is returned when a like targets a post that does not exist
type ErrPostNotFound struct {
	*BaseError
	PostID string
}

func NewPostNotFound(postID string) *ErrPostNotFound {
	return &ErrPostNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("post not found: %s", postID), nil),
		PostID:    postID,
	}
}

// Validation Errors

// ErrValidationFailed is returned when caller input is rejected
type ErrValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewValidationFailed(field, reason string) *ErrValidationFailed {
	return &ErrValidationFailed{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("invalid %s: %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Auth Errors

// ErrUnauthorized is returned when a request carries no valid session token
type ErrUnauthorized struct {
	*BaseError
	Reason string
}

func NewUnauthorized(reason string, err error) *ErrUnauthorized {
	return &ErrUnauthorized{
		BaseError: NewBaseError(ErrorTypeAuth, "unauthorized", err),
		Reason:    reason,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type kinded interface {
	Kind() ErrorType
}

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if k, ok := err.(kinded); ok && k.Kind() == errType {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return IsErrorType(err, ErrorTypeNotFound)
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	return IsErrorType(err, ErrorTypeValidation)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Store failures are transport/query level and can be retried by the caller
	return IsErrorType(err, ErrorTypeStore)
}
