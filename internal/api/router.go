package api

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the analysis endpoints on r under /api.
func RegisterRoutes(r chi.Router, h *AnalysisHandler) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/predict_url", h.PredictURL)
		r.Get("/result/{task_id}", h.GetResult)
		r.Post("/predict_text", h.PredictText)
	})
}
