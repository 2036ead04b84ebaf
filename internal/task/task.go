package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/emoscope/internal/domain"
)

// Status represents the lifecycle state of a task.
type Status string

// Possible task status values. A task starts pending and moves exactly once
// to one of the terminal states.
const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// IsTerminal reports whether s is complete or failed.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s.IsTerminal()
}

// Task type constants
const (
	// TaskTypeAnalysis is the task type for URL-based emotion analysis.
	TaskTypeAnalysis = "analysis"
)

// Task represents a unit of background work to be processed.
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Execute runs the task logic and returns the analysis result
	Execute(ctx context.Context) (*domain.Result, error)
}

// TaskQueueReader provides read-only access to the task channel
// allowing workers to consume tasks without the ability to enqueue
type TaskQueueReader interface {
	// GetChannel returns a read-only channel for consuming tasks
	GetChannel() <-chan Task
}

// TaskQueueWriter provides write access to the task queue
// allowing services to enqueue tasks for processing
type TaskQueueWriter interface {
	// Enqueue adds a task to the queue for processing
	// Returns an error if the queue is full or closed
	Enqueue(task Task) error

	// Close closes the task queue, preventing further task submission
	Close()
}

// Record is a snapshot of a task's registry entry.
type Record struct {
	ID         uuid.UUID
	Status     Status
	Result     *domain.Result
	Error      string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Result = r.Result.Clone()
	return &c
}

// Outcome is the terminal result of a task: either a completed result or a
// failure message. Construct it with Completed or Failed.
type Outcome struct {
	status Status
	result *domain.Result
	errMsg string
}

// Completed returns a successful outcome carrying res.
func Completed(res *domain.Result) Outcome {
	return Outcome{status: StatusComplete, result: res}
}

// Failed returns a failed outcome carrying a human-readable message.
func Failed(msg string) Outcome {
	if msg == "" {
		msg = "task failed"
	}
	return Outcome{status: StatusFailed, errMsg: msg}
}

// Status returns StatusComplete or StatusFailed.
func (o Outcome) Status() Status { return o.status }

// Result returns the result of a completed outcome, nil otherwise.
func (o Outcome) Result() *domain.Result { return o.result }

// Error returns the failure message of a failed outcome, "" otherwise.
func (o Outcome) Error() string { return o.errMsg }

// Registry is the shared store of task state. Implementations must be safe
// for concurrent use and must allow a task to move to a terminal state only
// once.
type Registry interface {
	// Create registers a new pending task. It returns ErrTaskExists if id is
	// already present.
	Create(ctx context.Context, id uuid.UUID) error

	// SetTerminal records the outcome of a pending task. It returns
	// ErrTaskNotFound for unknown ids and ErrTaskAlreadyTerminal if the task
	// already finished.
	SetTerminal(ctx context.Context, id uuid.UUID, outcome Outcome) error

	// Get returns a copy of the task's record, or ErrTaskNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Record, error)

	// Delete removes a task. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id uuid.UUID) error
}
