// Package apperror defines the error kinds shared by the service layer and
// the HTTP boundary. Services return *AppError values wrapping one of the
// sentinel kinds; handlers pick a status code with errors.Is on the kind and
// show Message to the client.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream error")
	ErrStore        = errors.New("store error")
)

type AppError struct {
	Err     error  // kind, one of the sentinels above
	Message string // human-readable, safe to return to clients
	Field   string // optional: request field causing the error
	Cause   error  // optional: underlying failure
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(message string) *AppError {
	return &AppError{Err: ErrNotFound, Message: message}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{Err: ErrValidation, Message: message, Field: field}
}

func Conflict(message string) *AppError {
	return &AppError{Err: ErrConflict, Message: message}
}

func Unauthorized(message string) *AppError {
	return &AppError{Err: ErrUnauthorized, Message: message}
}

// Upstream reports a failure of an external collaborator (LLM, identity
// provider). The cause's text is appended to the client message.
func Upstream(message string, cause error) *AppError {
	msg := message
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", message, cause)
	}
	return &AppError{Err: ErrUpstream, Message: msg, Cause: cause}
}

// Store reports a persistence failure. The driver's text becomes the client
// message. nil and already classified errors are returned unchanged.
func Store(cause error) error {
	var ae *AppError
	if cause == nil || errors.As(cause, &ae) {
		return cause
	}
	return &AppError{Err: ErrStore, Message: cause.Error(), Cause: cause}
}

// Message returns the client-facing text carried by err, if any.
func Message(err error) (string, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message, true
	}
	return "", false
}
