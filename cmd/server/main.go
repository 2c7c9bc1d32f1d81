package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/surroundvibe/relay/internal/config"
	"github.com/surroundvibe/relay/internal/metrics"
	"github.com/surroundvibe/relay/internal/server"
	"github.com/surroundvibe/relay/internal/session"
	"github.com/surroundvibe/relay/internal/upload"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "SurroundVibe session-synchronization relay",
		Long: `Relay keeps a shared-audio-playback session in sync: one host drives
play/pause/seek/volume and every listener receives the same state over
WebSocket, with a clock-offset exchange to compensate for latency.

Configuration is read from environment variables (LISTEN_ADDR,
ALLOWED_ORIGINS, UPLOAD_DIR, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run()
		},
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(log)

	m := metrics.New()

	uploads, err := upload.NewHandler(cfg.UploadDir, cfg.ValidateUploads, m, log.With("component", "upload"))
	if err != nil {
		return err
	}

	hub := session.NewHub(cfg, log.With("component", "hub"), m)
	go hub.Run()

	router := server.NewRouter(cfg, hub, uploads, log.With("component", "http"))
	srv := server.New(cfg.ListenAddr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info("received signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	// Stop accepting requests first, then close the client connections the
	// hub still holds.
	shutdownErr := server.Shutdown(srv, cfg.ShutdownTimeout, log)
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		return err
	}
	return shutdownErr
}
