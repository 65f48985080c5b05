package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/brainbites/internal/api"
	"github.com/goodtune/brainbites/internal/balance"
	"github.com/goodtune/brainbites/internal/clock"
	"github.com/goodtune/brainbites/internal/config"
	"github.com/goodtune/brainbites/internal/events"
	"github.com/goodtune/brainbites/internal/metrics"
	"github.com/goodtune/brainbites/internal/persist"
	"github.com/goodtune/brainbites/internal/quiz"
	"github.com/goodtune/brainbites/internal/systemd"
	"github.com/goodtune/brainbites/internal/usage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the BrainBites service",
	Long:  `Start the time balance service with its control API, event stream and metrics endpoint.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting BrainBites")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	flushTimeout := config.ParseDuration(cfg.Persistence.FlushTimeout, 5*time.Second)

	writer := persist.NewWriter(store, persist.Config{
		MaxRetries:     cfg.Persistence.MaxRetries,
		InitialBackoff: config.ParseDuration(cfg.Persistence.InitialBackoff, persist.DefaultInitialBackoff),
	}, logger)
	writer.Start()

	bus := events.NewBus(cfg.Events.BufferSize, logger)
	clk := clock.RealClock{}

	timeBalance := balance.New(store, writer, bus, clk, balance.Config{
		StaleThreshold: config.ParseDuration(cfg.Session.StaleSessionThreshold, balance.DefaultStaleThreshold),
	}, logger)

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), flushTimeout)
	available := timeBalance.Load(loadCtx)
	cancelLoad()

	logger.Info().
		Int64("available_seconds", available).
		Str("formatted", balance.Format(available)).
		Msg("Time balance loaded")

	sink, err := openSink(cfg.Notifications, store, clk, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize notification sink: %w", err)
	}

	sessions := usage.NewSessionClock(timeBalance, bus, sink, clk, usage.Config{
		TickInterval:       config.ParseDuration(cfg.Session.TickInterval, usage.DefaultTickInterval),
		CheckpointInterval: config.ParseDuration(cfg.Session.CheckpointInterval, usage.DefaultCheckpointInterval),
	}, logger)
	lifecycle := usage.NewLifecycleMapper(sessions, logger)

	provider, err := quiz.NewHTTPProvider(quiz.ProviderConfig{
		BaseURL:      cfg.Quiz.BaseURL,
		Timeout:      config.ParseDuration(cfg.Quiz.Timeout, 10*time.Second),
		RecentWindow: cfg.Quiz.RecentWindow,
		MaxAttempts:  cfg.Quiz.MaxAttempts,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize question provider: %w", err)
	}

	quizService := quiz.NewService(provider, timeBalance, quiz.Rewards{
		CorrectAnswerSeconds: int64(cfg.Rewards.CorrectAnswerSeconds),
		MilestoneSeconds:     int64(cfg.Rewards.MilestoneSeconds),
		MilestoneEvery:       cfg.Rewards.MilestoneEvery,
	}, cfg.Quiz.DefaultCategory, logger)

	// Start control API
	apiServer := api.NewServer(api.Config{
		ListenAddr: fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort),
	}, api.Deps{
		Balance:   timeBalance,
		Sessions:  sessions,
		Lifecycle: lifecycle,
		Quiz:      quizService,
		Events:    bus,
	}, logger)
	if sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	// Start metrics server
	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 {
		metricsServer = metrics.NewServer(fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort), logger)
		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	logger.Info().Msg("BrainBites started successfully")

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	stopWatchdog := startWatchdog(logger)
	defer stopWatchdog()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	// Signal handling loop
	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			logger.Info().Msg("Shutdown signal received, gracefully stopping...")
			break
		}

		logger.Info().Msg("SIGHUP received, flushing pending writes...")
		_ = systemd.NotifyReloading()
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := writer.Flush(ctx); err != nil {
			logger.Error().Err(err).Msg("Flush failed")
		}
		cancel()
		_ = systemd.NotifyReady()
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}

	// Settle a running session so its time is not lost, then drain writes
	if spent := sessions.Stop(); spent > 0 {
		logger.Info().Int64("time_spent", spent).Msg("Settled running session on shutdown")
	}
	sessions.Close()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := writer.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to flush pending writes")
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	logger.Info().Msg("BrainBites stopped")

	return nil
}

// startWatchdog pings the systemd watchdog when it is enabled.
func startWatchdog(logger zerolog.Logger) func() {
	interval, err := systemd.WatchdogInterval()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to query systemd watchdog")
		return func() {}
	}
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := systemd.NotifyWatchdog(); err != nil {
					logger.Warn().Err(err).Msg("Failed to send watchdog notification")
				}
			}
		}
	}()

	return func() { close(done) }
}
