package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/brainbites/internal/balance"
	"github.com/goodtune/brainbites/internal/clock"
	"github.com/goodtune/brainbites/internal/config"
	"github.com/goodtune/brainbites/internal/persist"
	"github.com/goodtune/brainbites/internal/storage"
	"github.com/spf13/cobra"
)

var resetSessionCmd = &cobra.Command{
	Use:   "reset-session",
	Short: "Close a dangling session without charging it",
	Long: `Mark a session left open by a crashed run as ended, without debiting its
time. The next start will then skip stale session reconciliation.`,
	Args: cobra.NoArgs,
	RunE: runResetSession,
}

func init() {
	rootCmd.AddCommand(resetSessionCmd)
}

func runResetSession(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.ParseDuration(cfg.Persistence.FlushTimeout, 5*time.Second))
	defer cancel()

	shadow, err := balance.ReadShadow(ctx, store)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Println("No session recorded")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session record: %w", err)
	}

	if !shadow.Dangling() {
		fmt.Println("No open session")
		return nil
	}

	writer := persist.NewWriter(store, persist.Config{MaxRetries: cfg.Persistence.MaxRetries}, logger)
	tb := balance.New(store, writer, nil, clock.RealClock{}, balance.Config{}, logger)
	tb.SaveShadow(shadow.Ended())

	if err := writer.Flush(ctx); err != nil {
		return fmt.Errorf("failed to save session record: %w", err)
	}

	color.New(color.FgYellow, color.Bold).Printf("Closed open session for %s without settlement\n", shadow.App())
	return nil
}
