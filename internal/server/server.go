// Package server assembles the HTTP facade: route table, middleware chain,
// and server lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"vodforge/internal/api"
	"vodforge/internal/observability/logging"
	"vodforge/internal/observability/metrics"
)

// Config controls how the facade server is built.
type Config struct {
	Addr     string
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
	CORS     CORSConfig
	Security SecurityConfig
}

// Server wraps the configured http.Server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Recorder
}

// New builds the facade server around the upload and health handlers.
func New(uploads *api.Handler, health *api.HealthHandler, cfg Config) (*Server, error) {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", health)
	mux.Handle("/metrics", recorder.Handler())
	mux.HandleFunc("/upload/getPresignedUrl", uploads.HandlePresignedUpload)
	mux.HandleFunc("/upload/getDownloadUrl", uploads.HandleDownloadURL)
	mux.HandleFunc("/upload/upload-video-link", uploads.HandleCreateVideoLink)
	mux.HandleFunc("/upload/video-link/{videoId}", uploads.HandleGetVideoLink)

	policy, err := newCORSPolicy(cfg.CORS)
	if err != nil {
		return nil, fmt.Errorf("build cors policy: %w", err)
	}

	handlerChain := http.Handler(mux)
	handlerChain = logging.RequestLogger(logging.RequestLoggerConfig{Logger: logger})(handlerChain)
	handlerChain = metrics.HTTPMiddleware(recorder, handlerChain)
	handlerChain = corsMiddleware(policy, logger, handlerChain)
	handlerChain = securityHeadersMiddleware(cfg.Security, handlerChain)
	handlerChain = requestIDMiddleware(logger, handlerChain)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlerChain,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{httpServer: httpServer, logger: logger, metrics: recorder}, nil
}

// Handler exposes the full middleware chain for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying http.Server for the runtime loop.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
