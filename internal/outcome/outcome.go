// Package outcome provides the tagged result type returned by every upstream
// fetch, plus the error taxonomy shared by the query and seeding paths.
package outcome

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure.
type Kind int

const (
	KindNetwork    Kind = iota + 1 // transport failure or non-2xx without an upstream error code
	KindParse                      // response body is not decodable
	KindAPI                        // upstream logical error embedded in a transport success
	KindNoData                     // well-formed but empty result
	KindValidation                 // caller-supplied input rejected before any network call
)

// String returns the snake_case name used in logs and API payloads.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network_error"
	case KindParse:
		return "parse_error"
	case KindAPI:
		return "api_error"
	case KindNoData:
		return "no_data"
	case KindValidation:
		return "validation_error"
	default:
		return "unknown"
	}
}

// Error is a classified fetch failure. Code is only meaningful for KindAPI.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Kind == KindAPI {
		return fmt.Sprintf("%s: %s (code %d)", e.Kind, e.Message, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error of the given kind.
func NewError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// NewAPIError builds a KindAPI error carrying the upstream code and message.
func NewAPIError(code int, msg string) *Error {
	if msg == "" {
		msg = "unknown upstream error"
	}
	return &Error{Kind: KindAPI, Code: code, Message: msg}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsNoData reports whether err is classified as KindNoData.
func IsNoData(err error) bool { return KindOf(err) == KindNoData }

// Diagnostics is attached to every outcome for observability. It never drives
// control flow.
type Diagnostics struct {
	RequestURL string            `json:"url,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	HTTPStatus int               `json:"status_code,omitempty"`
	ErrCode    *int              `json:"err_code,omitempty"`
	ErrMsg     string            `json:"err_msg,omitempty"`
	PageErrors []string          `json:"page_errors,omitempty"`
}

// Outcome is either a success carrying Value or a failure carrying Err.
// Diagnostics are populated in both cases.
type Outcome[T any] struct {
	Value       T
	Err         *Error
	Diagnostics Diagnostics
}

// Success returns a successful outcome.
func Success[T any](v T, diag Diagnostics) Outcome[T] {
	return Outcome[T]{Value: v, Diagnostics: diag}
}

// Failure returns a failed outcome. A nil err is replaced by a KindNetwork
// error so a Failure can never be mistaken for a Success.
func Failure[T any](err *Error, diag Diagnostics) Outcome[T] {
	if err == nil {
		err = NewError(KindNetwork, "unspecified failure", nil)
	}
	return Outcome[T]{Err: err, Diagnostics: diag}
}

// Ok reports whether the outcome is a success.
func (o Outcome[T]) Ok() bool { return o.Err == nil }

// Unwrap returns the value and a plain error for callers that prefer the
// (value, error) convention.
func (o Outcome[T]) Unwrap() (T, error) {
	if o.Err != nil {
		var zero T
		return zero, o.Err
	}
	return o.Value, nil
}
