// Package domainerrors provides the code-carrying error type used across
// services, stores, and transport. Services create or wrap errors with a Code;
// the HTTP layer translates the code into a status without inspecting
// messages.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers. Codes are part of the API surface:
// handlers branch on them and clients receive them verbatim.
type Code string

const (
	// CodeValidation marks malformed or out-of-range input (bad score,
	// malformed date, missing required field).
	CodeValidation Code = "validation"
	// CodeInvalidState marks a command that is not legal in the target's
	// current lifecycle state.
	CodeInvalidState Code = "invalid_state"
	// CodeForbidden marks a role mismatch or a non-owner acting on an owned
	// resource.
	CodeForbidden Code = "forbidden"
	// CodeNotFound marks an unknown entity id.
	CodeNotFound Code = "not_found"
	// CodeConflict marks an operation that would violate a uniqueness or
	// already-done constraint (duplicate primary inspection, double signature,
	// certificate already issued).
	CodeConflict Code = "conflict"

	// CodeBadRequest marks a request the transport layer could not parse.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized marks a missing or invalid credential.
	CodeUnauthorized Code = "unauthorized"
	// CodeInternal marks unexpected infrastructure failure.
	CodeInternal Code = "internal"
	// CodeTimeout marks a cancelled or deadline-exceeded operation.
	CodeTimeout Code = "timeout"
)

// Error is the concrete error type carried between layers. The wrapped cause,
// when present, participates in errors.Is/errors.As chains.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error with a code and a human-readable reason.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted reason.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. A nil cause yields
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Code == code {
		return true
	}
	return HasCode(e.Err, code)
}

// Is is a readability alias for HasCode; handlers use it to branch on
// expected failure classes.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto an HTTP status for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeInvalidState:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
