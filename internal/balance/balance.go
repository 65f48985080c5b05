// Package balance owns the authoritative count of spendable seconds.
//
// TimeBalance has no timers. It is mutated by Credit, and by Debit during
// session settlement and startup reconciliation. Every mutation is handed to
// the write queue; the in-memory value is authoritative regardless of
// whether the write lands.
package balance

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/goodtune/brainbites/internal/clock"
	"github.com/goodtune/brainbites/internal/events"
	"github.com/goodtune/brainbites/internal/metrics"
	"github.com/goodtune/brainbites/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultStaleThreshold is the gap after which an unclosed session found at
// startup is assumed to have consumed its whole wall-clock duration.
const DefaultStaleThreshold = 5 * time.Minute

// Enqueuer accepts asynchronous key writes.
type Enqueuer interface {
	Enqueue(key, value string)
}

// Publisher receives balance events.
type Publisher interface {
	Publish(e events.Event)
}

// Config holds TimeBalance configuration
type Config struct {
	StaleThreshold time.Duration
}

// TimeBalance is the single source of truth for spendable seconds.
type TimeBalance struct {
	store          storage.Store
	writer         Enqueuer
	bus            Publisher
	clock          clock.Clock
	staleThreshold time.Duration
	logger         zerolog.Logger

	mu        sync.Mutex
	available int64
}

// New creates a TimeBalance. Call Load before using it.
func New(store storage.Store, writer Enqueuer, bus Publisher, clk clock.Clock, config Config, logger zerolog.Logger) *TimeBalance {
	if config.StaleThreshold <= 0 {
		config.StaleThreshold = DefaultStaleThreshold
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	return &TimeBalance{
		store:          store,
		writer:         writer,
		bus:            bus,
		clock:          clk,
		staleThreshold: config.StaleThreshold,
		logger:         logger.With().Str("component", "balance").Logger(),
	}
}

// Load reads the persisted balance and reconciles a session left open by a
// previous process. Missing or corrupt data loads as zero.
func (b *TimeBalance) Load(ctx context.Context) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := ReadRecord(ctx, b.store)
	switch {
	case err == nil:
		b.available = max(rec.AvailableSeconds, 0)
	case errors.Is(err, storage.ErrNotFound):
		b.logger.Info().Msg("No saved balance, starting from zero")
		b.available = 0
	default:
		b.logger.Error().Err(err).Msg("Failed to read balance, starting from zero")
		b.available = 0
	}

	reconciled := b.reconcileLocked(ctx)

	metrics.AvailableSeconds.Set(float64(b.available))
	b.logger.Info().
		Int64("available_seconds", b.available).
		Int64("reconciled_seconds", reconciled).
		Msg("Balance loaded")

	b.publish(events.TimeLoaded{AvailableSeconds: b.available, Reconciled: reconciled})
	return b.available
}

// reconcileLocked closes a dangling shadow. When the gap since its start
// exceeds the stale threshold the whole gap is debited; pause time cannot be
// recovered across a restart so this is an approximation.
func (b *TimeBalance) reconcileLocked(ctx context.Context) int64 {
	shadow, err := ReadShadow(ctx, b.store)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			b.logger.Error().Err(err).Msg("Failed to read session shadow, skipping reconciliation")
		}
		return 0
	}
	if !shadow.Dangling() {
		return 0
	}

	start, _ := shadow.StartTime()
	gap := b.clock.Now().Sub(start)
	if gap < 0 {
		gap = 0
	}

	var debited int64
	if gap > b.staleThreshold {
		debited = b.debitLocked(int64(gap/time.Second), "reconcile")
		metrics.StaleSessionsReconciled.WithLabelValues("debited").Inc()
		b.logger.Warn().
			Str("app_id", shadow.App()).
			Dur("gap", gap).
			Int64("debited_seconds", debited).
			Msg("Stale session detected, debited full gap")
	} else {
		metrics.StaleSessionsReconciled.WithLabelValues("ignored").Inc()
		b.logger.Warn().
			Str("app_id", shadow.App()).
			Dur("gap", gap).
			Msg("Unclosed session within threshold, balance untouched")
	}

	b.saveShadow(shadow.Ended())
	return debited
}

// Credit adds seconds and returns the new total. Non-positive input is
// ignored.
func (b *TimeBalance) Credit(seconds int64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if seconds <= 0 {
		return b.available
	}

	b.available += seconds
	b.persistLocked()
	metrics.CreditsSeconds.Add(float64(seconds))

	b.logger.Debug().
		Int64("seconds", seconds).
		Int64("available_seconds", b.available).
		Msg("Credits added")

	b.publish(events.CreditsAdded{Seconds: seconds, NewTotal: b.available})
	return b.available
}

// Debit subtracts seconds, clamping at zero, and returns the new total.
// Negative input is ignored.
func (b *TimeBalance) Debit(seconds int64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if seconds < 0 {
		return b.available
	}
	b.debitLocked(seconds, "session")
	return b.available
}

// debitLocked returns the number of seconds actually removed.
func (b *TimeBalance) debitLocked(seconds int64, source string) int64 {
	taken := min(seconds, b.available)
	b.available -= taken
	b.persistLocked()
	metrics.DebitsSeconds.WithLabelValues(source).Add(float64(taken))
	return taken
}

// Get returns the last settled total. It does not reflect a running session.
func (b *TimeBalance) Get() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available
}

// Checkpoint re-persists the settled balance with a fresh lastUpdated. It is
// a liveness refresh only: the value written is the same settled total, so it
// does not limit how much session time a crash can lose.
func (b *TimeBalance) Checkpoint() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.persistLocked()
}

// SaveShadow persists the session shadow through the write queue.
func (b *TimeBalance) SaveShadow(s Shadow) {
	b.saveShadow(s)
}

func (b *TimeBalance) saveShadow(s Shadow) {
	data, err := json.Marshal(s)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to encode session shadow")
		return
	}
	b.writer.Enqueue(SessionKey, string(data))
}

func (b *TimeBalance) persistLocked() {
	metrics.AvailableSeconds.Set(float64(b.available))

	rec := Record{
		AvailableSeconds: b.available,
		LastUpdated:      b.clock.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to encode balance record")
		return
	}
	b.writer.Enqueue(TimerKey, string(data))
}

func (b *TimeBalance) publish(e events.Event) {
	if b.bus != nil {
		b.bus.Publish(e)
	}
}
