package errors

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// AppError represents a custom application error
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodePermissionDenied  = "PERMISSION_DENIED"
	ErrCodeResourceExhausted = "RESOURCE_EXHAUSTED"
)

// New creates a new AppError
func New(code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Common error constructors
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message, http.StatusInternalServerError)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func BadRequest(message string) *AppError {
	return New(ErrCodeBadRequest, message, http.StatusBadRequest)
}

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message, http.StatusForbidden)
}

func PermissionDenied(action string) *AppError {
	return New(ErrCodePermissionDenied, fmt.Sprintf("Permission denied: %s", action), http.StatusForbidden)
}

func ResourceExhausted(resource string) *AppError {
	return New(ErrCodeResourceExhausted, fmt.Sprintf("%s limit exceeded", resource), http.StatusTooManyRequests)
}

// NonFieldErrors is the key used for errors that span several fields.
const NonFieldErrors = "non_field_errors"

// FieldErrors maps a request field to a human readable message. It is rendered
// as the response body of a validation failure, e.g.
//
//	{"manager": "The assigned user must have the role of 'manager'."}
type FieldErrors map[string]string

// Field returns a FieldErrors holding a single entry.
func Field(name, message string) FieldErrors {
	return FieldErrors{name: message}
}

// Error implements the error interface with a stable field order.
func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Merge copies every entry of other into f, keeping existing messages.
func (f FieldErrors) Merge(other FieldErrors) FieldErrors {
	for k, v := range other {
		if _, exists := f[k]; !exists {
			f[k] = v
		}
	}
	return f
}
