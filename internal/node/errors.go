package node

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies domain failures.
type ErrorCode string

const (
	// ErrorCodeNodeNotFound is returned when a node does not exist.
	ErrorCodeNodeNotFound ErrorCode = "NODE_NOT_FOUND"
	// ErrorCodeFolderNotFound is returned when a folder target is missing
	// or the target is not a folder.
	ErrorCodeFolderNotFound ErrorCode = "FOLDER_NOT_FOUND"
	// ErrorCodeForbidden is returned on authorization failure.
	ErrorCodeForbidden ErrorCode = "FORBIDDEN"
	// ErrorCodeBadRequest is returned on structural invariant violations.
	ErrorCodeBadRequest ErrorCode = "BAD_REQUEST"
	// ErrorCodeValidation aggregates schema and referential-integrity
	// violations from the aspect validator.
	ErrorCodeValidation ErrorCode = "VALIDATION_FAILED"
	// ErrorCodeUnknown wraps unexpected collaborator failures.
	ErrorCodeUnknown ErrorCode = "UNKNOWN"
)

// Error is the domain error type. Validation errors carry the full list
// of violations so a caller sees every problem in one round trip.
type Error struct {
	code       ErrorCode
	message    string
	violations []string
	wrapped    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case len(e.violations) > 0:
		return fmt.Sprintf("%s: %s", e.message, strings.Join(e.violations, "; "))
	case e.wrapped != nil:
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	default:
		return e.message
	}
}

// Code returns the error classification.
func (e *Error) Code() ErrorCode { return e.code }

// Violations returns the individual validation failures, if any.
func (e *Error) Violations() []string { return e.violations }

// Unwrap returns the wrapped error if any.
func (e *Error) Unwrap() error { return e.wrapped }

// NotFound reports a missing node.
func NotFound(uuid string) *Error {
	return &Error{code: ErrorCodeNodeNotFound, message: fmt.Sprintf("node %q not found", uuid)}
}

// FolderNotFound reports a missing or wrong-kind folder target.
func FolderNotFound(uuid string) *Error {
	return &Error{code: ErrorCodeFolderNotFound, message: fmt.Sprintf("folder %q not found", uuid)}
}

// Forbidden reports an authorization failure.
func Forbidden(message string) *Error {
	return &Error{code: ErrorCodeForbidden, message: message}
}

// BadRequest reports a structural invariant violation.
func BadRequest(message string) *Error {
	return &Error{code: ErrorCodeBadRequest, message: message}
}

// ValidationFailed aggregates one or more schema violations.
func ValidationFailed(violations ...string) *Error {
	return &Error{
		code:       ErrorCodeValidation,
		message:    "node validation failed",
		violations: violations,
	}
}

// Unknown wraps an unexpected collaborator failure.
func Unknown(message string, err error) *Error {
	return &Error{code: ErrorCodeUnknown, message: message, wrapped: err}
}

// CodeOf extracts the domain error code, or ErrorCodeUnknown for errors
// outside the taxonomy.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsNotFound reports whether err is a node or folder not-found failure.
func IsNotFound(err error) bool {
	c := CodeOf(err)
	return c == ErrorCodeNodeNotFound || c == ErrorCodeFolderNotFound
}

// IsForbidden reports whether err is an authorization failure.
func IsForbidden(err error) bool { return CodeOf(err) == ErrorCodeForbidden }

// IsBadRequest reports whether err is a structural invariant violation.
func IsBadRequest(err error) bool { return CodeOf(err) == ErrorCodeBadRequest }

// IsValidation reports whether err is an aspect validation failure.
func IsValidation(err error) bool { return CodeOf(err) == ErrorCodeValidation }
