// Command serve exposes the last exported frame cache over HTTP together with
// health, readiness, and Prometheus metrics endpoints.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/wave-frame-cache/internal/adapter/http"
	"github.com/couchcryptid/wave-frame-cache/internal/config"
	"github.com/couchcryptid/wave-frame-cache/internal/export"
	"github.com/couchcryptid/wave-frame-cache/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	srv := httpadapter.NewServer(cfg.HTTPAddr, cfg.OutputPath, export.NewArtifactChecker(cfg.OutputPath), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
