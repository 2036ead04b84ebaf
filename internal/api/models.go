package api

import (
	"github.com/phrazzld/emoscope/internal/domain"
	"github.com/phrazzld/emoscope/internal/task"
)

// PredictURLRequest defines the payload for submitting a post URL.
type PredictURLRequest struct {
	URL string `json:"url" validate:"required"`
}

// PredictTextRequest defines the payload for synchronous text analysis.
type PredictTextRequest struct {
	Text string `json:"text" validate:"required"`
}

// SubmitResponse is returned when an analysis task has been accepted.
type SubmitResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// ResultResponse reports the state of an analysis task. Data is set only
// for complete tasks and Error only for failed ones.
type ResultResponse struct {
	Status string         `json:"status"`
	Data   *domain.Result `json:"data,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// TextPredictionResponse is the synchronous text analysis output.
type TextPredictionResponse = domain.TextAnalysis

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// recordToResponse converts a task record to its wire form.
func recordToResponse(rec *task.Record) ResultResponse {
	resp := ResultResponse{Status: string(rec.Status)}
	switch rec.Status {
	case task.StatusComplete:
		resp.Data = rec.Result
	case task.StatusFailed:
		resp.Error = rec.Error
		if resp.Error == "" {
			resp.Error = "task failed"
		}
	}
	return resp
}
