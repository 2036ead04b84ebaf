// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrInvalidInput is returned when a submission is empty or malformed.
	// It is always reported synchronously and no task is created.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a task identifier is unknown.
	ErrNotFound = errors.New("not found")

	// ErrInvalidID is returned when an identifier is malformed.
	ErrInvalidID = errors.New("invalid ID")

	// ErrRetrievalFailed is returned when the content retriever cannot produce
	// text or media references for a URL.
	ErrRetrievalFailed = errors.New("content retrieval failed")

	// ErrMediaFetchFailed is returned when a media reference cannot be fetched
	// or decoded.
	ErrMediaFetchFailed = errors.New("media fetch failed")

	// ErrClassificationFailed is returned when a classifier cannot score its input.
	ErrClassificationFailed = errors.New("classification failed")
)

// ValidationError describes a single invalid field of a request.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError creates a ValidationError wrapping the given sentinel.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap returns the wrapped sentinel to support errors.Is.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
