// Package apperror defines the error taxonomy shared by the matchmaking engine and its
// HTTP surface.
package apperror

import (
	"errors"
	"fmt"
)

// Code categorizes an Error.
type Code string

const (
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeAlreadyQueued    Code = "ALREADY_QUEUED"
	CodeAlreadyInSession Code = "ALREADY_IN_SESSION"
	CodeNotFound         Code = "NOT_FOUND"
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeProvisioning     Code = "PROVISIONING_FAILURE"
	CodeInternal         Code = "INTERNAL_ERROR"
)

// Error is a categorized failure. Field is set for validation errors and names the
// offending input; Retryable tells the client it may try the same request again.
type Error struct {
	Code      Code
	Message   string
	Field     string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}

func Unauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

func AlreadyQueued(userID string) *Error {
	return &Error{Code: CodeAlreadyQueued, Message: "user " + userID + " is already in the queue"}
}

func AlreadyInSession(userID string) *Error {
	return &Error{Code: CodeAlreadyInSession, Message: "user " + userID + " is already in a session"}
}

func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func Validation(field, msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg, Field: field}
}

// Provisioning wraps a room or credential failure. It is always retryable.
func Provisioning(err error) *Error {
	return &Error{Code: CodeProvisioning, Message: "could not provision video room, please retry", Retryable: true, Err: err}
}

func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}
