package http

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the exported frame cache to the renderer alongside health,
// readiness, and metrics endpoints.
type Server struct {
	httpServer   *http.Server
	artifactPath string
	logger       *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /frames.json routes. ready decides when the artifact may be served.
func NewServer(addr, artifactPath string, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		artifactPath: artifactPath,
		logger:       logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /frames.json", s.handleFrames(ready))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr, "artifact", s.artifactPath)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleFrames serves the artifact bytes as written, with conditional and
// range request support from http.ServeContent.
func (s *Server) handleFrames(ready sharedobs.ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ready.CheckReadiness(ctx); err != nil {
			s.logger.Warn("artifact not servable", "error", err)
			http.Error(w, "frame cache unavailable", http.StatusServiceUnavailable)
			return
		}

		f, err := os.Open(s.artifactPath)
		if err != nil {
			http.Error(w, "frame cache unavailable", http.StatusServiceUnavailable)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			http.Error(w, "frame cache unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeContent(w, r, "frames.json", info.ModTime(), f)
	}
}
