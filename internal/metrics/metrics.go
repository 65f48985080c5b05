package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Balance metrics
	CreditsSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brainbites_credits_seconds_total",
			Help: "Total seconds credited to the time balance",
		},
	)

	DebitsSeconds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brainbites_debits_seconds_total",
			Help: "Total seconds debited from the time balance",
		},
		[]string{"source"},
	)

	AvailableSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "brainbites_available_seconds",
			Help: "Last settled time balance in seconds",
		},
	)

	StaleSessionsReconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brainbites_stale_sessions_reconciled_total",
			Help: "Unclosed sessions found at startup",
		},
		[]string{"outcome"},
	)

	// Session metrics
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brainbites_sessions_started_total",
			Help: "Total app sessions started",
		},
	)

	SessionsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brainbites_sessions_ended_total",
			Help: "Total app sessions ended",
		},
		[]string{"reason"},
	)

	SessionActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "brainbites_session_active",
			Help: "1 while a session is running or paused",
		},
	)

	// Persistence metrics
	PersistWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brainbites_persist_writes_total",
			Help: "Write queue results",
		},
		[]string{"result"},
	)

	// Event feed metrics
	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brainbites_events_dropped_total",
			Help: "Events dropped because a subscriber was not keeping up",
		},
		[]string{"type"},
	)

	// Quiz metrics
	QuizAnswers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brainbites_quiz_answers_total",
			Help: "Quiz answers by result",
		},
		[]string{"result"},
	)

	QuestionFetchErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "brainbites_question_fetch_errors_total",
			Help: "Question provider failures that fell back to the offline question",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CreditsSeconds,
		DebitsSeconds,
		AvailableSeconds,
		StaleSessionsReconciled,
		SessionsStarted,
		SessionsEnded,
		SessionActive,
		PersistWrites,
		EventsDropped,
		QuizAnswers,
		QuestionFetchErrors,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
