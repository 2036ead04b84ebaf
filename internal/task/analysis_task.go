package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/emoscope/internal/classify"
	"github.com/phrazzld/emoscope/internal/domain"
	"github.com/phrazzld/emoscope/internal/media"
	"github.com/phrazzld/emoscope/internal/redact"
	"github.com/phrazzld/emoscope/internal/retrieval"
	"golang.org/x/sync/errgroup"
)

// TextFailurePolicy controls what a text classification failure does to
// the task.
type TextFailurePolicy string

const (
	// TextFailureIsolate degrades text predictions to empty and records a warning.
	TextFailureIsolate TextFailurePolicy = "isolate"

	// TextFailureFail fails the whole task.
	TextFailureFail TextFailurePolicy = "fail"
)

// MediaResolver fetches and decodes a media reference.
type MediaResolver interface {
	Resolve(ctx context.Context, ref string) (*media.Resolved, error)
}

// AnalysisDependencies are the collaborators an AnalysisTask calls.
type AnalysisDependencies struct {
	Retriever         retrieval.Retriever
	Resolver          MediaResolver
	TextClassifier    classify.TextClassifier
	ImageClassifier   classify.ImageClassifier
	TextFailurePolicy TextFailurePolicy
	Logger            *slog.Logger
}

func (d AnalysisDependencies) validate() error {
	if d.Retriever == nil {
		return ErrNilRetriever
	}
	if d.Resolver == nil {
		return ErrNilResolver
	}
	if d.TextClassifier == nil {
		return ErrNilTextClassifier
	}
	if d.ImageClassifier == nil {
		return ErrNilImageClassifier
	}
	if d.Logger == nil {
		return ErrNilLogger
	}
	return nil
}

// AnalysisTask runs the retrieve, classify and assemble pipeline for one
// post URL.
type AnalysisTask struct {
	id     uuid.UUID
	url    string
	deps   AnalysisDependencies
	logger *slog.Logger
}

// NewAnalysisTask creates an analysis task for url with a fresh id.
func NewAnalysisTask(url string, deps AnalysisDependencies) (*AnalysisTask, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if domain.IsBlank(url) {
		return nil, ErrEmptyURL
	}
	if deps.TextFailurePolicy == "" {
		deps.TextFailurePolicy = TextFailureIsolate
	}

	id := uuid.New()
	return &AnalysisTask{
		id:     id,
		url:    strings.TrimSpace(url),
		deps:   deps,
		logger: deps.Logger.With("task_type", TaskTypeAnalysis, "task_id", id),
	}, nil
}

// ID returns the task's unique identifier
func (t *AnalysisTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *AnalysisTask) Type() string {
	return TaskTypeAnalysis
}

// URL returns the post URL being analysed.
func (t *AnalysisTask) URL() string {
	return t.url
}

// Execute retrieves the post, classifies its text and first media item
// concurrently, and assembles the result. Only retrieval failures and,
// under TextFailureFail, text classification failures fail the task.
func (t *AnalysisTask) Execute(ctx context.Context) (*domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("task cancelled by context: %w", err)
	}

	t.logger.Info("retrieving post content")
	content, err := t.deps.Retriever.Fetch(ctx, t.url)
	if err != nil {
		t.logger.Error("failed to retrieve post", "error", redact.Error(err))
		return nil, err
	}

	result := domain.NewResult(content.Text)
	mediaRef := content.FirstMedia()

	t.logger.Info("retrieved post content",
		"has_text", content.HasText(),
		"has_media", mediaRef != "")

	var (
		mu       sync.Mutex
		warnings []string
	)
	warn := func(msg string) {
		mu.Lock()
		warnings = append(warnings, msg)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	if content.HasText() {
		g.Go(func() error {
			preds, err := t.deps.TextClassifier.ClassifyText(gctx, content.Text)
			if err != nil {
				if t.deps.TextFailurePolicy == TextFailureFail {
					return fmt.Errorf("text classification: %w", err)
				}
				t.logger.Warn("text classification failed, continuing without text predictions", "error", redact.Error(err))
				warn("text classification failed: " + redact.Error(err))
				return nil
			}
			result.TextPredictions = classify.TopK(preds, domain.MaxPredictions)
			return nil
		})
	}

	if mediaRef != "" {
		g.Go(func() error {
			resolved, err := t.deps.Resolver.Resolve(gctx, mediaRef)
			if err != nil {
				t.logger.Warn("media fetch failed, continuing without media", "error", redact.Error(err))
				warn("media fetch failed: " + redact.Error(err))
				return nil
			}

			inline := resolved.Inline
			result.Media = &inline

			preds, err := t.deps.ImageClassifier.ClassifyImage(gctx, resolved.Image)
			if err != nil {
				t.logger.Warn("image classification failed, continuing without image predictions", "error", redact.Error(err))
				warn("image classification failed: " + redact.Error(err))
				return nil
			}
			result.ImagePredictions = classify.TopK(preds, domain.MaxPredictions)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Warnings = warnings

	t.logger.Info("analysis assembled",
		"text_predictions", len(result.TextPredictions),
		"image_predictions", len(result.ImagePredictions),
		"warnings", len(result.Warnings))

	return result, nil
}
