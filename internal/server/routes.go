package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/surroundvibe/relay/internal/config"
	"github.com/surroundvibe/relay/internal/session"
	"github.com/surroundvibe/relay/internal/upload"
)

// NewRouter wires all application routes: the status probe, the WebSocket
// endpoint, the upload collaborator with its static file service, and the
// Prometheus scrape endpoint.
func NewRouter(cfg *config.Config, hub *session.Hub, uploads *upload.Handler, log *slog.Logger) http.Handler {
	origins := NewOriginChecker(cfg.AllowedOrigins, log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", statusHandler)
	r.Method(http.MethodGet, "/ws", newWSHandler(hub, origins, log))
	r.Post("/upload", uploads.ServeHTTP)
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", uploads.FileServer()))
	r.Handle("/metrics", promhttp.Handler())

	return r
}
