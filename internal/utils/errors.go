package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies where a failure came from.
type Kind string

const (
	KindTransport        Kind = "transport"
	KindDecode           Kind = "decode"
	KindParse            Kind = "parse"
	KindPersistence      Kind = "persistence"
	KindMissingParameter Kind = "missing_parameter"
)

// Error is the single tagged error that reaches the request boundary.
// Source is a short label naming the component that failed.
type Error struct {
	Kind    Kind
	Source  string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode maps the error kind to an HTTP status for presentation layers.
func (e *Error) StatusCode() int {
	if e.Kind == KindMissingParameter {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// IsKind reports whether err (or any error in its chain) is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ErrTransport returns an error for a failed remote call or a non-success response.
// The message carries the request and response details for diagnostics.
func ErrTransport(source, method, url, body, response string, err error) error {
	msg := fmt.Sprintf("method: %s url: %s body: %s response: %s", method, url, body, response)
	if err != nil && response == "" {
		msg = fmt.Sprintf("method: %s url: %s: %v", method, url, err)
	}
	return &Error{Kind: KindTransport, Source: source, Message: msg, Err: err}
}

// ErrDecode returns an error for malformed JSON or a schema mismatch.
func ErrDecode(source string, err error) error {
	return &Error{Kind: KindDecode, Source: source, Message: err.Error(), Err: err}
}

// ErrParse returns an error for an unparseable timezone or date/time string.
func ErrParse(source, message string) error {
	return &Error{Kind: KindParse, Source: source, Message: message}
}

// ErrPersistence returns an error for a cache store failure.
func ErrPersistence(source string, err error) error {
	return &Error{Kind: KindPersistence, Source: source, Message: err.Error(), Err: err}
}

// ErrMissingParameter returns an error for a required request parameter that is absent.
func ErrMissingParameter(field string) error {
	return &Error{
		Kind:    KindMissingParameter,
		Source:  "fetch_parameter",
		Message: fmt.Sprintf("Missing query parameter: %s", field),
	}
}
