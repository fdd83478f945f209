// Package apperror defines the domain errors shared by the store, service,
// and HTTP layers. Lower layers return these; only the handler package maps
// them to status codes.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream error")
)

type AppError struct {
	Err      error    // sentinel, matched with errors.Is
	Message  string   // Human-readable error message
	Field    string   // Optional: field causing the error
	Messages []string // Optional: every problem found, for multi-field validation
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:      ErrValidation,
		Message:  message,
		Field:    field,
		Messages: []string{message},
	}
}

// Invalid reports several validation problems at once. The joined list is
// the Message; the individual entries are kept in Messages so clients can
// render them separately.
func Invalid(messages ...string) *AppError {
	return &AppError{
		Err:      ErrValidation,
		Message:  strings.Join(messages, ", "),
		Messages: messages,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// ConflictMessage is Conflict with a caller-chosen message, for cases where
// echoing the conflicting key back would leak information.
func ConflictMessage(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized means the caller is not (or not correctly) authenticated.
// HTTP handlers map this to 401.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Upstream means a third-party service we proxy to failed or answered with
// something unusable. HTTP handlers map this to 502.
func Upstream(message string) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: message,
	}
}
