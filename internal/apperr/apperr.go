// Package apperr classifies failures so the HTTP layer can map them to
// status codes without inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of an application error
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindUpstream      Kind = "upstream"
	KindAuth          Kind = "auth"
	KindNotFound      Kind = "not_found"
	KindInternal      Kind = "internal"
)

// Error is an error carrying a Kind and a message that is safe to show callers
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Meta    map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports malformed or missing input
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Configuration reports a missing required setting
func Configuration(keys ...string) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Message: "Server configuration error",
		Err:     fmt.Errorf("missing required configuration %v", keys),
	}
}

// Upstream reports a failed call to an external service
func Upstream(service string, err error) *Error {
	return &Error{
		Kind:    KindUpstream,
		Message: fmt.Sprintf("%s request failed", service),
		Err:     err,
	}
}

// Auth reports a missing or rejected credential
func Auth(message string, meta map[string]any) *Error {
	return &Error{Kind: KindAuth, Message: message, Meta: meta}
}

// NotFound reports a missing local resource
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an application error of the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCode maps an error to its HTTP status
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message that may be shown to the caller.
// Upstream and internal detail stays in the server logs.
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return "Internal server error"
	}
	switch appErr.Kind {
	case KindUpstream:
		return "Internal server error"
	case KindConfiguration:
		return "Server configuration error"
	}
	return appErr.Message
}

// MetaOf returns the metadata attached to err, if any
func MetaOf(err error) map[string]any {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Meta
	}
	return nil
}
