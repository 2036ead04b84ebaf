package task

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/emoscope/internal/domain"
)

// MockTask is a simple implementation of the Task interface for testing
type MockTask struct {
	TaskID    uuid.UUID
	TaskType  string
	ExecuteFn func(ctx context.Context) (*domain.Result, error)
}

// NewMockTask creates a MockTask that completes with an empty result
func NewMockTask() *MockTask {
	return &MockTask{
		TaskID:   uuid.New(),
		TaskType: "mock_task",
		ExecuteFn: func(ctx context.Context) (*domain.Result, error) {
			return domain.NewResult(""), nil
		},
	}
}

// ID returns the task's unique identifier
func (t *MockTask) ID() uuid.UUID {
	return t.TaskID
}

// Type returns the task type identifier
func (t *MockTask) Type() string {
	return t.TaskType
}

// Execute runs the task logic
func (t *MockTask) Execute(ctx context.Context) (*domain.Result, error) {
	return t.ExecuteFn(ctx)
}
