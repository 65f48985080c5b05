package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/brainbites/internal/balance"
	"github.com/goodtune/brainbites/internal/config"
	"github.com/goodtune/brainbites/internal/storage"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the persisted time balance",
	Long:  `Show the persisted time balance and the state of the last session, without starting the service.`,
	Args:  cobra.NoArgs,
	RunE:  runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	cyan.Println("Time balance")

	rec, err := balance.ReadRecord(ctx, store)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		yellow.Println("  No balance saved yet")
	case err != nil:
		red.Printf("  Unreadable balance record: %v\n", err)
	default:
		green.Printf("  Available: %s (%d seconds)\n", balance.Format(rec.AvailableSeconds), rec.AvailableSeconds)
		fmt.Printf("  Last updated: %s\n", rec.LastUpdated)
	}

	fmt.Println()
	cyan.Println("Last session")

	shadow, err := balance.ReadShadow(ctx, store)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Println("  None recorded")
		return nil
	case err != nil:
		red.Printf("  Unreadable session record: %v\n", err)
		return nil
	}

	start, ok := shadow.StartTime()
	if !ok {
		fmt.Println("  None recorded")
		return nil
	}

	fmt.Printf("  App: %s\n", shadow.App())
	fmt.Printf("  Started: %s\n", start.Local().Format(time.RFC1123))
	if shadow.SessionEnded {
		green.Println("  Status: ended")
	} else {
		yellow.Println("  Status: open (will be reconciled on next start)")
	}

	return nil
}
