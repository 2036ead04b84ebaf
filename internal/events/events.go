package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/emoscope/internal/task"
)

// Event types.
const (
	TypeTaskCompleted = "task.completed"
	TypeTaskFailed    = "task.failed"
)

// TaskEvent describes a task reaching a terminal state.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// TaskID identifies the task the event is about
	TaskID uuid.UUID `json:"task_id"`

	// Type is TypeTaskCompleted or TypeTaskFailed
	Type string `json:"type"`

	// Payload contains the type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	CreatedAt time.Time `json:"created_at"`
}

// OutcomeSummary is the payload of task events. It carries counts rather
// than content so events never hold captions or media.
type OutcomeSummary struct {
	TextPredictions  int    `json:"text_predictions"`
	ImagePredictions int    `json:"image_predictions"`
	HasMedia         bool   `json:"has_media"`
	Warnings         int    `json:"warnings"`
	Error            string `json:"error,omitempty"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *TaskEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewTaskEvent creates a TaskEvent with the given type and payload.
func NewTaskEvent(eventType string, taskID uuid.UUID, payload interface{}) (*TaskEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &TaskEvent{
		ID:        uuid.New(),
		TaskID:    taskID,
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}, nil
}

// FromOutcome builds the event for a recorded task outcome.
func FromOutcome(taskID uuid.UUID, outcome task.Outcome) (*TaskEvent, error) {
	if outcome.Status() == task.StatusFailed {
		return NewTaskEvent(TypeTaskFailed, taskID, OutcomeSummary{Error: outcome.Error()})
	}

	var summary OutcomeSummary
	if res := outcome.Result(); res != nil {
		summary.TextPredictions = len(res.TextPredictions)
		summary.ImagePredictions = len(res.ImagePredictions)
		summary.HasMedia = res.Media != nil
		summary.Warnings = len(res.Warnings)
	}
	return NewTaskEvent(TypeTaskCompleted, taskID, summary)
}

// EventHandler processes task events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent implements EventHandler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}

// EventEmitter publishes events to handlers.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *TaskEvent) error
}
