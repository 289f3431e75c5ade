package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure a run can end with
type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "InvalidInput"
	KindMissingCredential ErrorKind = "MissingCredential"
	KindNotFound          ErrorKind = "NotFound"
	KindRateLimited       ErrorKind = "RateLimited"
	KindUpstream          ErrorKind = "UpstreamError"
	KindEmptyResponse     ErrorKind = "EmptyResponse"
	KindMalformedResponse ErrorKind = "MalformedResponse"
	KindUnexpected        ErrorKind = "UnexpectedError"
)

// Sentinels for errors.Is matching by kind
var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrMissingCredential = &Error{Kind: KindMissingCredential}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrRateLimited       = &Error{Kind: KindRateLimited}
	ErrUpstream          = &Error{Kind: KindUpstream}
	ErrEmptyResponse     = &Error{Kind: KindEmptyResponse}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
	ErrUnexpected        = &Error{Kind: KindUnexpected}
)

const unexpectedMessage = "An unexpected error occurred during analysis."

// Error is a typed failure. Message is safe to show to the user; Err carries
// the diagnostic cause and is never displayed verbatim.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int // remote status code, set for upstream failures
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates a typed error with a user-facing message
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// NewUpstreamError creates an UpstreamError carrying the remote status
func NewUpstreamError(status int, message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Status: status, Err: cause}
}

// NewUnexpectedError wraps an unclassified failure
func NewUnexpectedError(cause error) *Error {
	return &Error{Kind: KindUnexpected, Message: unexpectedMessage, Err: cause}
}

// KindOf returns the kind of err, or UnexpectedError for untyped errors
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// UserMessage returns the message to show for err
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return unexpectedMessage
}

// Describe renders kind, status and cause for logs
func Describe(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}
