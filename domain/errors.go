package domain

import (
	"errors"
	"fmt"
)

// Error codes
const (
	EINVALID   = "invalid"   // Invalid input or validation failure
	ENOTFOUND  = "not_found" // Template, file or image not found
	ETRANSPORT = "transport" // Connection, authentication or delivery failure
	EDECODE    = "decode"    // Image or message content could not be decoded
	EINTERNAL  = "internal"  // Unexpected local failure (filesystem, encoding)
)

// Error represents a mail error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "render.image")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context. The code of the
// wrapped error is kept when code is empty, so callers can re-label the
// operation without losing the failure category.
func Wrap(err error, code, op, message string) *Error {
	if code == "" {
		code = ErrorCode(err)
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the outermost Error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// ErrorOp returns the operation of the outermost Error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// IsNotFound reports whether err carries the ENOTFOUND code.
func IsNotFound(err error) bool { return ErrorCode(err) == ENOTFOUND }

// IsInvalid reports whether err carries the EINVALID code.
func IsInvalid(err error) bool { return ErrorCode(err) == EINVALID }

// IsTransport reports whether err carries the ETRANSPORT code.
func IsTransport(err error) bool { return ErrorCode(err) == ETRANSPORT }

// IsDecode reports whether err carries the EDECODE code.
func IsDecode(err error) bool { return ErrorCode(err) == EDECODE }

// Convenience constructors for common error types

// NotFound creates a not found error for a missing path.
func NotFound(op, resource, path string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s %q not found", resource, path),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Transport creates a transport error, wrapping the underlying error.
func Transport(err error, op, message string) *Error {
	return &Error{
		Code:    ETRANSPORT,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Decode creates a decode error, wrapping the underlying error.
func Decode(err error, op, message string) *Error {
	return &Error{
		Code:    EDECODE,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
