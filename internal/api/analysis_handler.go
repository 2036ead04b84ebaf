package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/phrazzld/emoscope/internal/api/shared"
	"github.com/phrazzld/emoscope/internal/platform/logger"
	"github.com/phrazzld/emoscope/internal/service"
)

// AnalysisHandler handles the submit, poll and text analysis endpoints.
type AnalysisHandler struct {
	analysisService service.AnalysisService
	logger          *slog.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler
func NewAnalysisHandler(analysisService service.AnalysisService, logger *slog.Logger) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{
		analysisService: analysisService,
		logger:          logger.With("component", "analysis_handler"),
	}
}

// PredictURL handles POST /api/predict_url requests. The analysis runs in
// the background; the response carries the task ID to poll.
func (h *AnalysisHandler) PredictURL(w http.ResponseWriter, r *http.Request) {
	var req PredictURLRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	taskID, err := h.analysisService.SubmitURL(r.Context(), req.URL)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start analysis")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitResponse{
		Message: "Analysis started",
		TaskID:  taskID.String(),
	})
}

// GetResult handles GET /api/result/{task_id} requests.
func (h *AnalysisHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	taskID, err := getPathUUID(r, "task_id")
	if err != nil {
		log.Debug("invalid task id in path", "error", err)
		HandleAPIError(w, r, err, "")
		return
	}

	rec, err := h.analysisService.Poll(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read task result")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, recordToResponse(rec))
}

// PredictText handles POST /api/predict_text requests synchronously.
func (h *AnalysisHandler) PredictText(w http.ResponseWriter, r *http.Request) {
	var req PredictTextRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	analysis, err := h.analysisService.PredictText(r.Context(), req.Text)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to classify text")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, analysis)
}

// Health handles GET /api/health requests.
func (h *AnalysisHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}

// decodeAndValidate decodes the JSON body into v and validates it, writing
// a 400 response and returning false on failure.
func (h *AnalysisHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		msg := "Invalid request format"
		if errors.Is(err, shared.ErrEmptyBody) {
			msg = "Request body is required"
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, msg, err)
		return false
	}

	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}
