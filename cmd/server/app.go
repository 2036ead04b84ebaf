package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/emoscope/internal/config"
	"github.com/phrazzld/emoscope/internal/events"
	"github.com/phrazzld/emoscope/internal/media"
	"github.com/phrazzld/emoscope/internal/retrieval"
	"github.com/phrazzld/emoscope/internal/service"
	"github.com/phrazzld/emoscope/internal/task"
)

// application holds the wired components of the server.
type application struct {
	config          *config.Config
	logger          *slog.Logger
	registry        *registryHandle
	runner          *task.TaskRunner
	analysisService service.AnalysisService
}

// newApplication builds every component from cfg and starts the task runner.
// Components started before a failure are released again.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	httpClient := &http.Client{}

	retriever := retrieval.NewOpenGraphRetriever(httpClient, retrieval.Config{
		Timeout:    time.Duration(cfg.Retriever.TimeoutSeconds) * time.Second,
		UserAgent:  cfg.Retriever.UserAgent,
		MaxRetries: cfg.Retriever.MaxRetries,
	}, logger)

	resolver := media.NewResolver(httpClient, media.Config{
		Timeout:    time.Duration(cfg.Media.FetchTimeoutSeconds) * time.Second,
		MaxBytes:   cfg.Media.MaxBytes,
		MaxPixels:  cfg.Media.MaxPixels,
		MaxRetries: cfg.Media.MaxRetries,
		UserAgent:  cfg.Retriever.UserAgent,
	}, logger)

	cls, err := setupClassifiers(ctx, cfg.Classifier, logger)
	if err != nil {
		return nil, err
	}

	factory, err := task.NewAnalysisTaskFactory(task.AnalysisDependencies{
		Retriever:         retriever,
		Resolver:          resolver,
		TextClassifier:    cls.text,
		ImageClassifier:   cls.image,
		TextFailurePolicy: task.TextFailurePolicy(cfg.Task.TextFailurePolicy),
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis task factory: %w", err)
	}

	reg, err := setupRegistry(ctx, cfg.Registry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up task registry: %w", err)
	}

	runner := task.NewTaskRunner(reg.registry, task.TaskRunnerConfig{
		WorkerCount: cfg.Task.WorkerCount,
		QueueSize:   cfg.Task.QueueSize,
		TaskTimeout: time.Duration(cfg.Task.TimeoutSeconds) * time.Second,
	}, logger)

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.NewLogHandler(logger))
	runner.SetCompletionHandler(emitter.CompletionHandler())

	svc, err := service.NewAnalysisService(runner, factory, reg.registry, cls.text, logger)
	if err != nil {
		reg.close()
		return nil, fmt.Errorf("failed to create analysis service: %w", err)
	}

	if err := runner.Start(); err != nil {
		reg.close()
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	logger.Info("Task runner started",
		"workers", cfg.Task.WorkerCount,
		"queue_size", cfg.Task.QueueSize)

	return &application{
		config:          cfg,
		logger:          logger,
		registry:        reg,
		runner:          runner,
		analysisService: svc,
	}, nil
}

// Run serves HTTP until ctx is cancelled and then shuts everything down.
func (app *application) Run(ctx context.Context) error {
	return app.startHTTPServer(ctx, app.setupRouter())
}

func (app *application) shutdownTimeout() time.Duration {
	if app.config.Server.ShutdownTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(app.config.Server.ShutdownTimeoutSeconds) * time.Second
}

// cleanup stops the task runner and then releases the registry. Tasks still
// running when ctx expires are recorded as failed by the runner.
func (app *application) cleanup(ctx context.Context) error {
	var errs []error

	if app.runner != nil {
		if err := app.runner.Stop(ctx); err != nil {
			app.logger.Error("Task runner did not stop cleanly", "error", err)
			errs = append(errs, err)
		}
	}

	if app.registry != nil && app.registry.close != nil {
		app.registry.close()
	}

	return errors.Join(errs...)
}
