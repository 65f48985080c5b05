package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/brainbites/internal/balance"
	"github.com/goodtune/brainbites/internal/clock"
	"github.com/goodtune/brainbites/internal/config"
	"github.com/goodtune/brainbites/internal/persist"
	"github.com/spf13/cobra"
)

var creditCmd = &cobra.Command{
	Use:   "credit SECONDS",
	Short: "Credit seconds to the time balance",
	Long: `Credit seconds to the persisted time balance while the service is stopped.
Loading the balance reconciles any session left open by a previous run.`,
	Example: `  brainbites credit 300
  brainbites -c config.yaml credit 30`,
	Args: cobra.ExactArgs(1),
	RunE: runCredit,
}

func init() {
	rootCmd.AddCommand(creditCmd)
}

func runCredit(cmd *cobra.Command, args []string) error {
	seconds, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || seconds <= 0 {
		return fmt.Errorf("seconds must be a positive integer: %q", args[0])
	}

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

	writer := persist.NewWriter(store, persist.Config{
		MaxRetries:     cfg.Persistence.MaxRetries,
		InitialBackoff: config.ParseDuration(cfg.Persistence.InitialBackoff, persist.DefaultInitialBackoff),
	}, logger)

	tb := balance.New(store, writer, nil, clock.RealClock{}, balance.Config{
		StaleThreshold: config.ParseDuration(cfg.Session.StaleSessionThreshold, balance.DefaultStaleThreshold),
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), config.ParseDuration(cfg.Persistence.FlushTimeout, 5*time.Second))
	defer cancel()

	before := tb.Load(ctx)
	total := tb.Credit(seconds)

	if err := writer.Flush(ctx); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}

	color.New(color.FgGreen, color.Bold).Printf("Credited %s\n", balance.Format(seconds))
	fmt.Printf("Balance: %s -> %s\n", balance.Format(before), balance.Format(total))
	return nil
}
