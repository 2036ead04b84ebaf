package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/emoscope/internal/classify"
	"github.com/phrazzld/emoscope/internal/domain"
	"github.com/phrazzld/emoscope/internal/redact"
	"github.com/phrazzld/emoscope/internal/retrieval"
	"github.com/phrazzld/emoscope/internal/task"
)

// TaskRunner defines the interface for submitting background tasks
type TaskRunner interface {
	// Submit registers the task as pending and adds it to the processing queue
	Submit(ctx context.Context, task task.Task) error
}

// AnalysisTaskFactory creates analysis tasks for post URLs
type AnalysisTaskFactory interface {
	// CreateTask creates a new task that analyses the given URL
	CreateTask(url string) (task.Task, error)
}

// AnalysisService provides the submit/poll protocol and synchronous text analysis
type AnalysisService interface {
	// SubmitURL validates url, schedules an analysis task and returns its id.
	// The task is pending in the registry by the time SubmitURL returns.
	SubmitURL(ctx context.Context, url string) (uuid.UUID, error)

	// Poll returns a snapshot of the task's state
	Poll(ctx context.Context, id uuid.UUID) (*task.Record, error)

	// PredictText classifies text synchronously without creating a task
	PredictText(ctx context.Context, text string) (*domain.TextAnalysis, error)
}

// analysisServiceImpl implements the AnalysisService interface
type analysisServiceImpl struct {
	runner         TaskRunner
	factory        AnalysisTaskFactory
	registry       task.Registry
	textClassifier classify.TextClassifier
	logger         *slog.Logger
}

// NewAnalysisService creates a new AnalysisService.
// It returns an error if any dependency is nil.
func NewAnalysisService(
	runner TaskRunner,
	factory AnalysisTaskFactory,
	registry task.Registry,
	textClassifier classify.TextClassifier,
	logger *slog.Logger,
) (AnalysisService, error) {
	var err error
	switch {
	case runner == nil:
		err = ErrNilTaskRunner
	case factory == nil:
		err = ErrNilTaskFactory
	case registry == nil:
		err = ErrNilRegistry
	case textClassifier == nil:
		err = ErrNilTextClassifier
	case logger == nil:
		err = ErrNilLogger
	}
	if err != nil {
		return nil, &AnalysisServiceError{
			Operation: "create_service",
			Message:   "invalid dependency",
			Err:       err,
		}
	}

	return &analysisServiceImpl{
		runner:         runner,
		factory:        factory,
		registry:       registry,
		textClassifier: textClassifier,
		logger:         logger.With("component", "analysis_service"),
	}, nil
}

// SubmitURL implements AnalysisService.SubmitURL
func (s *analysisServiceImpl) SubmitURL(ctx context.Context, rawURL string) (uuid.UUID, error) {
	if domain.IsBlank(rawURL) {
		return uuid.Nil, domain.NewValidationError("url", "cannot be empty", domain.ErrInvalidInput)
	}

	normalized, err := retrieval.NormalizeURL(rawURL)
	if err != nil {
		s.logger.DebugContext(ctx, "rejected submission", "error", redact.Error(err))
		return uuid.Nil, domain.NewValidationError("url", validationMessage(err), domain.ErrInvalidInput)
	}

	t, err := s.factory.CreateTask(normalized.String())
	if err != nil {
		return uuid.Nil, NewAnalysisServiceError("submit_url", "failed to create analysis task", err)
	}

	if err := s.runner.Submit(ctx, t); err != nil {
		s.logger.WarnContext(ctx, "failed to submit analysis task",
			"task_id", t.ID(),
			"error", err)
		return uuid.Nil, NewAnalysisServiceError("submit_url", "failed to submit analysis task", err)
	}

	s.logger.InfoContext(ctx, "analysis task submitted",
		"task_id", t.ID(),
		"url", redact.URL(normalized.String()))

	return t.ID(), nil
}

// Poll implements AnalysisService.Poll
func (s *analysisServiceImpl) Poll(ctx context.Context, id uuid.UUID) (*task.Record, error) {
	rec, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, NewAnalysisServiceError("poll", "failed to read task state", err)
	}
	return rec, nil
}

// PredictText implements AnalysisService.PredictText
func (s *analysisServiceImpl) PredictText(ctx context.Context, text string) (*domain.TextAnalysis, error) {
	if domain.IsBlank(text) {
		return nil, domain.NewValidationError("text", "cannot be empty", domain.ErrInvalidInput)
	}

	preds, err := s.textClassifier.ClassifyText(ctx, text)
	if err != nil {
		s.logger.ErrorContext(ctx, "text classification failed", "error", redact.Error(err))
		if !errors.Is(err, domain.ErrClassificationFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrClassificationFailed, err)
		}
		return nil, NewAnalysisServiceError("predict_text", "failed to classify text", err)
	}

	return &domain.TextAnalysis{
		Text:            text,
		TextPredictions: classify.TopK(preds, domain.MaxPredictions),
	}, nil
}

// validationMessage turns a URL validation error into a client-facing message.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 && i+2 < len(msg) {
		return "is invalid: " + msg[i+2:]
	}
	return "is invalid"
}
