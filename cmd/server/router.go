package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/emoscope/internal/api"
	apiMiddleware "github.com/phrazzld/emoscope/internal/api/middleware"
)

// requestTimeout bounds request handling. Analysis itself runs in the
// background, so only synchronous text classification comes close.
const requestTimeout = 60 * time.Second

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewCORSMiddleware(app.config.Server.AllowedOrigins))
	r.Use(middleware.Timeout(requestTimeout))

	api.RegisterRoutes(r, api.NewAnalysisHandler(app.analysisService, app.logger))

	return r
}
