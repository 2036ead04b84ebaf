package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/emoscope/internal/domain"
	"github.com/phrazzld/emoscope/internal/task"
)

// Dependency errors returned by NewAnalysisService.
var (
	ErrNilTaskRunner     = errors.New("task runner cannot be nil")
	ErrNilTaskFactory    = errors.New("task factory cannot be nil")
	ErrNilRegistry       = errors.New("task registry cannot be nil")
	ErrNilTextClassifier = errors.New("text classifier cannot be nil")
	ErrNilLogger         = errors.New("logger cannot be nil")
)

// AnalysisServiceError wraps errors from the analysis service with context.
type AnalysisServiceError struct {
	// Operation is the operation that failed (e.g., "submit_url", "predict_text")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface.
func (e *AnalysisServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("analysis service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is and errors.As.
func (e *AnalysisServiceError) Unwrap() error {
	return e.Err
}

// NewAnalysisServiceError returns the sentinels callers check for directly
// and wraps every other error in an AnalysisServiceError.
func NewAnalysisServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return err
	case errors.Is(err, domain.ErrNotFound):
		return err
	case errors.Is(err, task.ErrQueueFull), errors.Is(err, task.ErrRunnerStopped):
		// Unavailability is reported as-is so the API can answer 503.
		return err
	}

	return &AnalysisServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
