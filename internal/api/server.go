// Package api exposes the shopping agent over HTTP: whole-turn JSON at
// POST /chat, incremental SSE at POST /chat/stream, plus health probes.
package api

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopbot-ai/shopbot/internal/agent"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response,
	// including a full SSE stream.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive limit between requests.
	IdleTimeout = 120 * time.Second
)

// ChatService is the conversation engine the server fronts. *agent.Agent
// satisfies it.
type ChatService interface {
	Chat(ctx context.Context, req agent.Request) (*agent.Turn, error)
	ChatStream(ctx context.Context, req agent.Request) iter.Seq[agent.Event]
}

// Server is the HTTP server for the shopping agent.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates a server with all routes registered. db may be nil; the
// readiness probe then reports ready unconditionally.
func NewServer(chat ChatService, db pinger, logger *slog.Logger) (*Server, error) {
	if chat == nil {
		return nil, errors.New("chat service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{chat: chat, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", ch.send)
	mux.HandleFunc("POST /chat/stream", ch.stream)
	mux.HandleFunc("GET /health", health(logger))
	mux.HandleFunc("GET /ready", readiness(db, logger))

	return &Server{mux: mux, logger: logger}, nil
}

// Handler returns the full handler with middleware applied.
// Order: recovery, then logging, then CORS, then routes.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		corsMiddleware(),
	)
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
