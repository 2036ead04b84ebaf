package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/phrazzld/emoscope/internal/api/shared"
)

// NewCORSMiddleware returns middleware that answers CORS preflight requests
// and sets Access-Control-Allow-Origin for allowed origins. An entry of "*"
// allows any origin.
func NewCORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", shared.TraceIDHeader},
		ExposedHeaders: []string{shared.TraceIDHeader},
		MaxAge:         600,
	})
}
