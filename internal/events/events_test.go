package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/emoscope/internal/domain"
	"github.com/phrazzld/emoscope/internal/platform/logger"
	"github.com/phrazzld/emoscope/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler collects events and optionally fails.
type recordingHandler struct {
	events []*TaskEvent
	err    error
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	h.events = append(h.events, event)
	return h.err
}

func TestFromOutcome(t *testing.T) {
	t.Parallel()

	id := uuid.New()

	res := domain.NewResult("caption")
	res.TextPredictions = []domain.Prediction{{Label: "joy", Score: 0.8}, {Label: "love", Score: 0.2}}
	res.Warnings = []string{"media fetch failed"}

	event, err := FromOutcome(id, task.Completed(res))
	require.NoError(t, err)
	assert.Equal(t, TypeTaskCompleted, event.Type)
	assert.Equal(t, id, event.TaskID)
	assert.NotEqual(t, uuid.Nil, event.ID)

	var summary OutcomeSummary
	require.NoError(t, event.UnmarshalPayload(&summary))
	assert.Equal(t, OutcomeSummary{TextPredictions: 2, Warnings: 1}, summary)

	event, err = FromOutcome(id, task.Failed("retrieval failed"))
	require.NoError(t, err)
	assert.Equal(t, TypeTaskFailed, event.Type)
	require.NoError(t, event.UnmarshalPayload(&summary))
	assert.Equal(t, "retrieval failed", summary.Error)
}

func TestInMemoryEventEmitter(t *testing.T) {
	t.Parallel()

	t.Run("no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger.Discard())
		event, err := NewTaskEvent(TypeTaskCompleted, uuid.New(), OutcomeSummary{})
		require.NoError(t, err)
		assert.NoError(t, emitter.EmitEvent(context.Background(), event))
	})

	t.Run("every handler sees the event and first error wins", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger.Discard())
		first := &recordingHandler{err: errors.New("first")}
		second := &recordingHandler{err: errors.New("second")}
		third := &recordingHandler{}
		emitter.RegisterHandler(first)
		emitter.RegisterHandler(second)
		emitter.RegisterHandler(third)

		event, err := NewTaskEvent(TypeTaskFailed, uuid.New(), OutcomeSummary{Error: "x"})
		require.NoError(t, err)

		err = emitter.EmitEvent(context.Background(), event)
		assert.EqualError(t, err, "first")
		assert.Len(t, first.events, 1)
		assert.Len(t, second.events, 1)
		assert.Len(t, third.events, 1)
	})
}

func TestCompletionHandler(t *testing.T) {
	t.Parallel()

	emitter := NewInMemoryEventEmitter(logger.Discard())
	var got []*TaskEvent
	emitter.RegisterHandler(HandlerFunc(func(ctx context.Context, event *TaskEvent) error {
		got = append(got, event)
		return nil
	}))

	id := uuid.New()
	emitter.CompletionHandler()(id, task.Failed("boom"))

	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].TaskID)
	assert.Equal(t, TypeTaskFailed, got[0].Type)
}

func TestLogHandler(t *testing.T) {
	t.Parallel()

	buf, l := logger.NewTestLogger(t)
	h := NewLogHandler(l)

	id := uuid.New()
	completed, err := NewTaskEvent(TypeTaskCompleted, id, OutcomeSummary{TextPredictions: 3, HasMedia: true})
	require.NoError(t, err)
	require.NoError(t, h.HandleEvent(context.Background(), completed))

	failed, err := NewTaskEvent(TypeTaskFailed, id, OutcomeSummary{Error: "login as user@example.com failed"})
	require.NoError(t, err)
	require.NoError(t, h.HandleEvent(context.Background(), failed))

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "analysis task completed", entries[0]["msg"])
	assert.Equal(t, float64(3), entries[0]["text_predictions"])
	assert.Equal(t, "WARN", entries[1]["level"])
	assert.NotContains(t, buf.String(), "user@example.com")

	bad := &TaskEvent{Type: TypeTaskCompleted, Payload: []byte("{")}
	assert.Error(t, h.HandleEvent(context.Background(), bad))
}

func TestCompletionHandler_LogsHandlerError(t *testing.T) {
	t.Parallel()

	buf, l := logger.NewTestLogger(t)
	emitter := NewInMemoryEventEmitter(l)
	emitter.RegisterHandler(&recordingHandler{err: errors.New("sink offline")})

	id := uuid.New()
	emitter.CompletionHandler()(id, task.Completed(domain.NewResult("hi")))

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)

	var warned bool
	for _, e := range entries {
		if e["msg"] == "task event not fully handled" {
			warned = true
			assert.Equal(t, "WARN", e["level"])
			assert.Equal(t, id.String(), e["task_id"])
			assert.Equal(t, "sink offline", e["error"])
		}
	}
	assert.True(t, warned)
}
