package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable machine-readable error classification
type ErrorCode string

const (
	ErrUnauthenticated    ErrorCode = "UNAUTHENTICATED"
	ErrPermissionDenied   ErrorCode = "PERMISSION_DENIED"
	ErrInvalidArgument    ErrorCode = "INVALID_ARGUMENT"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrFailedPrecondition ErrorCode = "FAILED_PRECONDITION"
	ErrResourceExhausted  ErrorCode = "RESOURCE_EXHAUSTED"
	ErrAborted            ErrorCode = "ABORTED"
	ErrInternal           ErrorCode = "INTERNAL"
)

// Error is the domain error type carried across service boundaries. MessageKey
// is a localization key for the human-facing message; Detail holds the
// offending entity id or value as a structured suffix.
type Error struct {
	Code       ErrorCode
	MessageKey string
	Detail     string
	cause      error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s [%s]", e.Code, e.MessageKey, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.MessageKey)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause attaches the underlying error for wrapping chains
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

func newError(code ErrorCode, messageKey, detail string) *Error {
	return &Error{Code: code, MessageKey: messageKey, Detail: detail}
}

func Unauthenticated(messageKey string) *Error {
	return newError(ErrUnauthenticated, messageKey, "")
}

func PermissionDenied(messageKey, detail string) *Error {
	return newError(ErrPermissionDenied, messageKey, detail)
}

func InvalidArgument(messageKey, detail string) *Error {
	return newError(ErrInvalidArgument, messageKey, detail)
}

func NotFound(messageKey, detail string) *Error {
	return newError(ErrNotFound, messageKey, detail)
}

func FailedPrecondition(messageKey, detail string) *Error {
	return newError(ErrFailedPrecondition, messageKey, detail)
}

func ResourceExhausted(messageKey, detail string) *Error {
	return newError(ErrResourceExhausted, messageKey, detail)
}

func Aborted(messageKey, detail string) *Error {
	return newError(ErrAborted, messageKey, detail)
}

func Internal(messageKey string) *Error {
	return newError(ErrInternal, messageKey, "")
}

// CodeOf extracts the error code from an error chain, defaulting to INTERNAL
// for unclassified errors.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrInternal
}

// IsCode reports whether the error chain carries the given code
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
