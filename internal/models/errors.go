package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so the worker loop can decide
// between retry, dead-letter, and drop.
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindParser     ErrorKind = "parser"
	ErrorKindDatabase   ErrorKind = "database"
	ErrorKindSecurity   ErrorKind = "security"
	ErrorKindNotFound   ErrorKind = "not_found"
)

// PipelineError carries a kind, a message, and a structured detail map.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Detail  map[string]interface{}
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func newPipelineError(kind ErrorKind, message string, detail map[string]interface{}) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Detail: detail}
}

// NewValidationError reports bad input. Never retried.
func NewValidationError(message string, detail map[string]interface{}) *PipelineError {
	return newPipelineError(ErrorKindValidation, message, detail)
}

// NewParserError reports an unreachable or malformed source. Retried.
func NewParserError(message string, err error) *PipelineError {
	return &PipelineError{Kind: ErrorKindParser, Message: message, Err: err}
}

// NewDatabaseError reports transient store connectivity. Retried.
func NewDatabaseError(message string, err error) *PipelineError {
	return &PipelineError{Kind: ErrorKindDatabase, Message: message, Err: err}
}

// NewSecurityError reports path traversal or unauthorized file access.
// Fatal for the task, never retried.
func NewSecurityError(message string, detail map[string]interface{}) *PipelineError {
	return newPipelineError(ErrorKindSecurity, message, detail)
}

// NewNotFoundError reports a missing queue, review, or job.
func NewNotFoundError(message string, detail map[string]interface{}) *PipelineError {
	return newPipelineError(ErrorKindNotFound, message, detail)
}

// KindOf extracts the error kind, defaulting to database (retryable) for
// untyped errors so transient infrastructure failures get retried.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrorKindDatabase
}

// Retryable reports whether the worker loop should re-enqueue the task.
func Retryable(err error) bool {
	switch KindOf(err) {
	case ErrorKindValidation, ErrorKindSecurity, ErrorKindNotFound:
		return false
	default:
		return true
	}
}
