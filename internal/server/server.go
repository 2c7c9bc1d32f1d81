// Package server assembles the HTTP surface of the relay: routing, the
// WebSocket upgrade path with origin enforcement, and server lifecycle.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// New creates an HTTP server for the given address and handler with timeouts
// suited to long-lived WebSocket upgrades on the same listener.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would sever long-lived WebSocket connections.
		IdleTimeout: 60 * time.Second,
	}
}

// Shutdown gracefully stops the HTTP server, waiting for active requests to
// finish or the timeout to expire.
func Shutdown(srv *http.Server, timeout time.Duration, log *slog.Logger) error {
	log.Info("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http server shutdown", "error", err)
		return err
	}

	log.Info("http server shutdown complete")
	return nil
}
