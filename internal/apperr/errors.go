// Package apperr defines the error taxonomy shared by the chat service and its
// transports.
package apperr

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code is a machine-readable error category.
type Code string

const (
	// CodeInvalidArgument marks missing or malformed caller input.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	// CodeUnauthenticated marks an operation that needs a session.
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	// CodeRateLimited marks a caller that exceeded its request budget.
	CodeRateLimited Code = "RATE_LIMITED"
	// CodeInternal marks storage failures and anything unexpected.
	CodeInternal Code = "INTERNAL"
)

// Error carries a code, a caller-safe message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Invalid is shorthand for a validation error.
func Invalid(message string) *Error {
	return New(CodeInvalidArgument, message)
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidArgument = New(CodeInvalidArgument, "invalid argument")
	ErrUnauthenticated = New(CodeUnauthenticated, "not authenticated")
	ErrRateLimited     = New(CodeRateLimited, "rate limit exceeded")
	ErrInternal        = New(CodeInternal, "internal error")
)

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// PublicMessage returns the message safe to show a caller. Internal errors
// never leak their cause.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Code == CodeInternal {
			return "internal error"
		}
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps a code to an HTTP status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps a code to a gRPC status code.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeInvalidArgument:
		return codes.InvalidArgument
	case CodeUnauthenticated:
		return codes.Unauthenticated
	case CodeRateLimited:
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}

// ToGRPCStatus converts err into a gRPC status error.
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(CodeOf(err).GRPCCode(), PublicMessage(err))
}
