// Package api exposes the time-balance core to a local UI over HTTP.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goodtune/brainbites/internal/events"
	"github.com/goodtune/brainbites/internal/quiz"
	"github.com/goodtune/brainbites/internal/usage"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Balance is the settled balance.
type Balance interface {
	Get() int64
	Credit(seconds int64) int64
}

// Sessions is the session clock.
type Sessions interface {
	Start(appID string) bool
	Stop() int64
	CurrentSession() *usage.SessionView
	AvailableTime() int64
}

// Lifecycle accepts platform state transitions.
type Lifecycle interface {
	Transition(state string) error
}

// Quiz serves questions and scores answers.
type Quiz interface {
	Next(ctx context.Context, category string) quiz.Question
	Answer(choice string) (quiz.Result, error)
}

// Feed is the event source streamed to websocket clients.
type Feed interface {
	Subscribe() (<-chan events.Event, func())
}

// Deps are the components the API drives.
type Deps struct {
	Balance   Balance
	Sessions  Sessions
	Lifecycle Lifecycle
	Quiz      Quiz
	Events    Feed
}

// Config holds the API server configuration.
type Config struct {
	ListenAddr string
}

// Server is the control API HTTP server.
type Server struct {
	config   Config
	deps     Deps
	router   *mux.Router
	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
	logger   zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		config: cfg,
		deps:   deps,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API only binds to a local address
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/balance", s.handleBalance).Methods("GET")
	s.router.HandleFunc("/api/credit", s.handleCredit).Methods("POST")

	s.router.HandleFunc("/api/session", s.handleSession).Methods("GET")
	s.router.HandleFunc("/api/session/start", s.handleSessionStart).Methods("POST")
	s.router.HandleFunc("/api/session/stop", s.handleSessionStop).Methods("POST")
	s.router.HandleFunc("/api/lifecycle", s.handleLifecycle).Methods("POST")

	s.router.HandleFunc("/api/quiz/question", s.handleQuestion).Methods("GET")
	s.router.HandleFunc("/api/quiz/answer", s.handleAnswer).Methods("POST")

	s.router.HandleFunc("/api/events", s.handleEvents).Methods("GET")
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")

	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the API server. Websocket connections are hijacked
// and are closed by their handlers when the event feed ends.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}

	return nil
}
