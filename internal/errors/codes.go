package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies import and workflow failures.
type Code string

const (
	CodeMissingField        Code = "missing_field"
	CodeNotFound            Code = "not_found"
	CodeInvalidFormat       Code = "invalid_format"
	CodeInvalidRange        Code = "invalid_range"
	CodeUploadTransport     Code = "upload_transport_error"
	CodeSecurityCheckFailed Code = "security_check_failed"
	CodeSessionExpired      Code = "session_expired"
	CodePermissionDenied    Code = "permission_denied"
)

// ImportError is a request-level failure carrying a taxonomy code and a
// message that is safe to show to the user.
type ImportError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Is matches another *ImportError by code, so sentinel comparisons work
// regardless of message.
func (e *ImportError) Is(target error) bool {
	var other *ImportError
	if stderrors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// New creates an ImportError with the given code and message.
func New(code Code, message string) *ImportError {
	return &ImportError{Code: code, Message: message}
}

// Wrap creates an ImportError around an underlying cause.
func Wrap(code Code, message string, err error) *ImportError {
	return &ImportError{Code: code, Message: message, Err: err}
}

// CodeOf returns the taxonomy code of err, or "" when err is not an ImportError.
func CodeOf(err error) Code {
	var ie *ImportError
	if stderrors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var ie *ImportError
	if stderrors.As(err, &ie) {
		return ie.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
