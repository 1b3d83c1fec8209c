package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrLivelock is matched by errors.Is on a run that ended in livelock.
var ErrLivelock = errors.New("simulation livelocked")

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the coresim API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	if e.Field != "" {
		b.WriteString(e.Field + ": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ValidationError collects every problem found in a workload.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.String()
	}
	return "invalid workload: " + strings.Join(msgs, "; ")
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// LivelockError reports the tasks left parked when a run stopped making progress.
type LivelockError struct {
	Tick  int
	Stuck []TaskView
}

func (e *LivelockError) Error() string {
	names := make([]string, len(e.Stuck))
	for i, t := range e.Stuck {
		names[i] = t.Name
	}
	return fmt.Sprintf("livelock detected at tick %d: %d task(s) waiting forever [%s]",
		e.Tick, len(e.Stuck), strings.Join(names, ", "))
}

func (e *LivelockError) Is(target error) bool {
	return target == ErrLivelock
}
