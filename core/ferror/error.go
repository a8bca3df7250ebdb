// Package ferror implements tejas's tagged error sum and the precedence
// rules the dispatcher uses to turn an arbitrary "thrown" value into a
// status-coded response (§4.2/§9 of the design notes: replace the
// teacher's polymorphic-argument throw with an explicit sum type instead
// of inheritance).
package ferror

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tejasframework/tejas/core/status"
)

// Kind enumerates the error taxonomy from the error-handling design.
type Kind int

const (
	Internal Kind = iota
	InvalidInput
	Unauthorized
	Forbidden
	NotFound
	NotAllowed
	PayloadTooLarge
	UnsupportedMediaType
	TooManyRequests
	Timeout
	Unsupported
	Configuration
)

// statusForKind maps a taxonomy Kind to its default HTTP status.
var statusForKind = map[Kind]int{
	Internal:              500,
	InvalidInput:          400,
	Unauthorized:          401,
	Forbidden:             403,
	NotFound:              404,
	NotAllowed:            405,
	PayloadTooLarge:       413,
	UnsupportedMediaType:  415,
	TooManyRequests:       429,
	Timeout:               408,
	Unsupported:           500,
	Configuration:         500,
}

// Error is the typed framework error: a {code, message} pair that a
// middleware or handler can construct directly and pass to RC.SendError.
type Error struct {
	Code    int
	Message string
	Kind    Kind
}

func (e *Error) Error() string {
	return e.Message
}

// New builds a typed framework error for the given taxonomy kind, using
// the kind's default status and the supplied message.
func New(kind Kind, message string) *Error {
	code, ok := statusForKind[kind]
	if !ok {
		code = 500
	}
	return &Error{Code: code, Message: message, Kind: kind}
}

// WithCode builds a typed framework error with an explicit status code,
// bypassing the taxonomy default (e.g. WithCode(418, "I'm a teapot")
// for a status no Kind maps to).
func WithCode(code int, message string) *Error {
	return &Error{Code: code, Message: message, Kind: Internal}
}

// Resolved is the outcome of running Resolve: the status and body a
// caught error should be sent as.
type Resolved struct {
	Code    int
	Message string
}

// Resolve implements the §4.2 throw precedence table on an arbitrary
// value handed to the error sender:
//
//  1. nil -> 500 Internal Server Error
//  2. int -> that status, its reason phrase as body (an int outside
//     [100, 599] gives 500)
//  3. *Error (typed framework error) -> its code and message
//  4. error whose message parses as an integer -> that integer is the
//     status, reason phrase is the message
//  5. error whose message matches a known reason phrase (case
//     insensitive) -> the mapped status, message is the original
//  6. anything else -> 500, body is the string form of the value
func Resolve(v any) Resolved {
	if v == nil {
		return Resolved{Code: 500, Message: status.Text(500)}
	}

	switch val := v.(type) {
	case int:
		if status.IsStatusCode(val) {
			return Resolved{Code: val, Message: status.Text(val)}
		}
		return Resolved{Code: 500, Message: status.Text(500)}
	case *Error:
		code := val.Code
		if !status.IsStatusCode(code) {
			code = 500
		}
		return Resolved{Code: code, Message: val.Message}
	case error:
		msg := val.Error()
		if n, err := strconv.Atoi(msg); err == nil && status.IsStatusCode(n) {
			return Resolved{Code: n, Message: status.Text(n)}
		}
		if code, ok := status.CodeForPhrase(msg); ok {
			return Resolved{Code: code, Message: msg}
		}
		return Resolved{Code: 500, Message: msg}
	default:
		return Resolved{Code: 500, Message: fmt.Sprintf("%v", val)}
	}
}

// ErrNotFound is a convenience sentinel for handlers that prefer
// errors.Is-style comparisons over constructing a typed Error.
var ErrNotFound = errors.New("not found")
