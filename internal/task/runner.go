package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/emoscope/internal/redact"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// TaskTimeout bounds the execution of a single task. Zero means no limit.
	TaskTimeout time.Duration

	// DrainGrace is how long Stop waits for cancelled tasks to record their
	// outcome after the shutdown deadline passes. Defaults to 5 seconds.
	DrainGrace time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount: 4,
		QueueSize:   100,
		TaskTimeout: 2 * time.Minute,
		DrainGrace:  5 * time.Second,
	}
}

// CompletionHandler is invoked after a task's outcome has been recorded.
type CompletionHandler func(id uuid.UUID, outcome Outcome)

// TaskRunner dispatches submitted tasks to a worker pool and records their
// outcome in a Registry.
type TaskRunner struct {
	registry Registry
	queue    *TaskQueue
	pool     *WorkerPool
	config   TaskRunnerConfig
	logger   *slog.Logger

	mu         sync.RWMutex
	started    bool
	stopped    bool
	onComplete CompletionHandler
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(registry Registry, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	defaults := DefaultTaskRunnerConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.DrainGrace <= 0 {
		config.DrainGrace = defaults.DrainGrace
	}

	logger = logger.With("component", "task_runner")
	queue := NewTaskQueue(config.QueueSize, logger)

	return &TaskRunner{
		registry: registry,
		queue:    queue,
		pool:     NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger),
		config:   config,
		logger:   logger,
	}
}

// SetCompletionHandler registers a callback run after each task finishes.
func (r *TaskRunner) SetCompletionHandler(handler CompletionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onComplete = handler
}

// Submit registers the task as pending and queues it for execution.
// If the queue is full the registry entry is removed again and an error
// wrapping ErrQueueFull is returned.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	r.mu.RLock()
	stopped := r.stopped
	r.mu.RUnlock()
	if stopped {
		return ErrRunnerStopped
	}

	if err := r.registry.Create(ctx, task.ID()); err != nil {
		return fmt.Errorf("failed to register task: %w", err)
	}

	if err := r.queue.Enqueue(task); err != nil {
		if delErr := r.registry.Delete(context.WithoutCancel(ctx), task.ID()); delErr != nil {
			r.logger.Error("failed to roll back task registration",
				"task_id", task.ID(),
				"error", delErr)
		}
		if errors.Is(err, ErrQueueClosed) {
			return ErrRunnerStopped
		}
		return err
	}

	return nil
}

// Start launches the worker pool.
func (r *TaskRunner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrRunnerStopped
	}
	if r.started {
		return nil
	}
	r.started = true

	r.pool.Start(r.processTask)
	return nil
}

// Stop stops accepting tasks and waits for queued and in-flight tasks to
// finish. If ctx expires first, remaining tasks are cancelled; they still
// record a failed outcome before Stop returns, bounded by DrainGrace.
func (r *TaskRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	r.queue.Close()

	if !started {
		r.failQueued("task runner stopped before execution")
		return nil
	}

	if err := r.pool.Wait(ctx); err != nil {
		r.logger.Warn("shutdown deadline reached, cancelling remaining tasks",
			"queued", r.queue.Len())
		r.pool.Cancel()

		graceCtx, cancel := context.WithTimeout(context.Background(), r.config.DrainGrace)
		defer cancel()
		if graceErr := r.pool.Wait(graceCtx); graceErr != nil {
			r.logger.Error("tasks still running after drain grace period", "error", graceErr)
		}
		return fmt.Errorf("task runner stop: %w", err)
	}

	r.pool.Cancel()
	r.logger.Info("task runner stopped")
	return nil
}

// failQueued records a failure for every task still buffered in a closed
// queue. Used when Stop is called on a runner that never started.
func (r *TaskRunner) failQueued(msg string) {
	for task := range r.queue.GetChannel() {
		r.finish(context.Background(), task, Failed(msg), r.logger)
	}
}

// processTask handles execution of a single task
func (r *TaskRunner) processTask(ctx context.Context, task Task, workerID int) {
	logger := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	logger.Info("processing task")
	start := time.Now()

	outcome := r.execute(ctx, task, logger)

	if outcome.Status() == StatusFailed {
		logger.Error("task execution failed",
			"error", redact.String(outcome.Error()),
			"duration_ms", time.Since(start).Milliseconds())
	} else {
		logger.Info("task completed successfully",
			"duration_ms", time.Since(start).Milliseconds())
	}

	r.finish(ctx, task, outcome, logger)
}

// execute runs the task under the configured timeout and converts its
// result, error, or panic into an Outcome.
func (r *TaskRunner) execute(ctx context.Context, task Task, logger *slog.Logger) (outcome Outcome) {
	if r.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.TaskTimeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("task panicked", "panic", p, "stack", string(debug.Stack()))
			outcome = Failed(fmt.Sprintf("internal error: %v", p))
		}
	}()

	if err := ctx.Err(); err != nil {
		return Failed(fmt.Sprintf("task cancelled before execution: %v", err))
	}

	res, err := task.Execute(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return Failed(fmt.Sprintf("task timed out: %v", err))
		}
		return Failed(err.Error())
	}
	if res == nil {
		return Failed("task produced no result")
	}
	return Completed(res)
}

// finish writes the outcome to the registry and notifies the completion
// handler. The registry write is not subject to task cancellation.
func (r *TaskRunner) finish(ctx context.Context, task Task, outcome Outcome, logger *slog.Logger) {
	writeCtx := context.WithoutCancel(ctx)
	if err := r.registry.SetTerminal(writeCtx, task.ID(), outcome); err != nil {
		logger.Error("failed to record task outcome",
			"status", outcome.Status(),
			"error", err)
		return
	}

	r.mu.RLock()
	handler := r.onComplete
	r.mu.RUnlock()
	if handler != nil {
		handler(task.ID(), outcome)
	}
}
