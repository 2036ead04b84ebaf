package events

import (
	"context"
	"log/slog"

	"github.com/phrazzld/emoscope/internal/redact"
)

// LogHandler writes one structured log line per task event.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a LogHandler.
func NewLogHandler(logger *slog.Logger) *LogHandler {
	return &LogHandler{logger: logger.With("component", "task_events")}
}

// HandleEvent implements EventHandler.
func (h *LogHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	var summary OutcomeSummary
	if err := event.UnmarshalPayload(&summary); err != nil {
		return err
	}

	if event.Type == TypeTaskFailed {
		h.logger.WarnContext(ctx, "analysis task failed",
			"task_id", event.TaskID,
			"error", redact.String(summary.Error))
		return nil
	}

	h.logger.InfoContext(ctx, "analysis task completed",
		"task_id", event.TaskID,
		"text_predictions", summary.TextPredictions,
		"image_predictions", summary.ImagePredictions,
		"has_media", summary.HasMedia,
		"warnings", summary.Warnings)
	return nil
}
