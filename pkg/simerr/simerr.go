package simerr

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure that can be reported to clients.
type Code string

const (
	CodeInvalidRequest       Code = "INVALID_REQUEST"
	CodeUnknownStrategy      Code = "UNKNOWN_STRATEGY"
	CodeInsufficientData     Code = "INSUFFICIENT_DATA"
	CodeIOError              Code = "IO_ERROR"
	CodeParseError           Code = "PARSE_ERROR"
	CodeInsufficientCash     Code = "INSUFFICIENT_CASH"
	CodeInsufficientPosition Code = "INSUFFICIENT_POSITION"
	CodeInternal             Code = "INTERNAL"
)

// Error is a classified error. All failures that cross a component boundary
// are wrapped in one so callers can branch on the code.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(code Code, format string, args ...interface{}) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// CodeOf returns the code carried by err, or CodeInternal if err is not a
// classified error.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
