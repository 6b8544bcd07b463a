package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess     Code = 0
	CodeInternal    Code = 1
	CodeUsage       Code = 2
	CodeInvalid     Code = 3
	CodeAmbiguous   Code = 4
	CodeUnknown     Code = 5
	CodeAuth        Code = 10
	CodeRateLimited Code = 11
	CodeUnavailable Code = 12
	CodeBackend     Code = 13
	CodeThrottled   Code = 14
)

// Error is a typed error carrying a stable code plus, for failures
// surfaced from the trading backend, the HTTP status and the backend's
// own error code.
type Error struct {
	Code       Code
	Message    string
	Cause      error
	Status     int
	RemoteCode string
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Remote builds a backend-originated error preserving the HTTP status and
// any backend-supplied error code.
func Remote(code Code, message string, status int, remoteCode string) *Error {
	return &Error{Code: code, Message: message, Status: status, RemoteCode: remoteCode}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if typed, ok := As(err); ok {
		return int(typed.Code)
	}
	return int(CodeInternal)
}
