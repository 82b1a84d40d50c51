// Package apperr defines the error taxonomy shared by the stores, the action
// processor and the protocol dispatcher.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error class.
type Code string

const (
	CodeInternal            Code = "internal"
	CodeConflict            Code = "conflict"
	CodeNotFound            Code = "not-found"
	CodeForbidden           Code = "forbidden"
	CodeUnauthenticated     Code = "unauthenticated"
	CodeInvalid             Code = "invalid"
	CodeSystemInconsistency Code = "system-inconsistency"
	CodeNotImplemented      Code = "not-implemented"
)

// Error is a coded error with an internal message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrInternal            = &Error{Code: CodeInternal, Message: "internal error"}
	ErrConflict            = &Error{Code: CodeConflict, Message: "conflict"}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrForbidden           = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrUnauthenticated     = &Error{Code: CodeUnauthenticated, Message: "unauthenticated"}
	ErrInvalid             = &Error{Code: CodeInvalid, Message: "invalid"}
	ErrSystemInconsistency = &Error{Code: CodeSystemInconsistency, Message: "system inconsistency"}
	ErrNotImplemented      = &Error{Code: CodeNotImplemented, Message: "not implemented"}
)

// New creates an error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded error around cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Conflictf reports a stale clock or a violated precondition.
func Conflictf(format string, args ...any) *Error {
	return New(CodeConflict, fmt.Sprintf(format, args...))
}

// NotFoundf reports a missing game, user, character or resource.
func NotFoundf(format string, args ...any) *Error {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

// Forbiddenf reports an authenticated user acting outside their games.
func Forbiddenf(format string, args ...any) *Error {
	return New(CodeForbidden, fmt.Sprintf(format, args...))
}

// Invalidf reports a malformed request or action.
func Invalidf(format string, args ...any) *Error {
	return New(CodeInvalid, fmt.Sprintf(format, args...))
}

// Unauthenticatedf reports missing or bad credentials.
func Unauthenticatedf(format string, args ...any) *Error {
	return New(CodeUnauthenticated, fmt.Sprintf(format, args...))
}

// CodeOf extracts the code of the first *Error in err's chain. Errors that carry
// no code are internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// PublicCode maps a code to what may be shown to a client. System
// inconsistencies are reported as generic internal failures.
func PublicCode(err error) Code {
	switch c := CodeOf(err); c {
	case CodeSystemInconsistency, "":
		return CodeInternal
	default:
		return c
	}
}
