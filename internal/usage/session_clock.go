// Package usage runs the timed app session against the time balance.
package usage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goodtune/brainbites/internal/balance"
	"github.com/goodtune/brainbites/internal/clock"
	"github.com/goodtune/brainbites/internal/events"
	"github.com/goodtune/brainbites/internal/metrics"
	"github.com/goodtune/brainbites/internal/notify"
	"github.com/rs/zerolog"
)

const (
	// DefaultTickInterval is how often a running session reports progress
	DefaultTickInterval = time.Second

	// DefaultCheckpointInterval is how much active time passes between
	// balance checkpoints
	DefaultCheckpointInterval = 30 * time.Second

	sinkTimeout = 5 * time.Second
)

// ErrNoTimeAvailable is returned by callers that surface a refused Start.
var ErrNoTimeAvailable = errors.New("no time available")

// Ledger is the balance a SessionClock settles against.
type Ledger interface {
	Get() int64
	Debit(seconds int64) int64
	Checkpoint()
	SaveShadow(s balance.Shadow)
}

// Publisher receives session events.
type Publisher interface {
	Publish(e events.Event)
}

// Config holds session clock configuration
type Config struct {
	TickInterval       time.Duration
	CheckpointInterval time.Duration
}

// SessionClock owns at most one timed session. It is Idle when no session
// exists, otherwise Running or Paused.
//
// Lock order is SessionClock then Ledger. Events are published with the
// session lock held so subscribers see them in transition order.
type SessionClock struct {
	ledger             Ledger
	bus                Publisher
	sink               notify.Sink
	clock              clock.Clock
	tickInterval       time.Duration
	checkpointInterval time.Duration
	logger             zerolog.Logger

	mu             sync.Mutex
	session        *Session
	lastCheckpoint time.Duration
	generation     uint64
	ticker         clock.Ticker
	stopTick       chan struct{}

	// seq identifies the current session for reminder scheduling; it moves
	// on every start and settlement. sinkMu orders sink calls.
	seq    uint64
	sinkMu sync.Mutex
}

// NewSessionClock creates an idle session clock. sink may be nil.
func NewSessionClock(ledger Ledger, bus Publisher, sink notify.Sink, clk clock.Clock, config Config, logger zerolog.Logger) *SessionClock {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.CheckpointInterval <= 0 {
		config.CheckpointInterval = DefaultCheckpointInterval
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	return &SessionClock{
		ledger:             ledger,
		bus:                bus,
		sink:               sink,
		clock:              clk,
		tickInterval:       config.TickInterval,
		checkpointInterval: config.CheckpointInterval,
		logger:             logger.With().Str("component", "session-clock").Logger(),
	}
}

// Start begins a session for appID. It returns false and publishes
// timeExpired when there is no balance to spend. A session that is already
// running is settled first.
func (c *SessionClock) Start(appID string) bool {
	c.mu.Lock()

	replaced := false
	if c.session != nil {
		c.logger.Warn().
			Str("app_id", c.session.AppID).
			Str("next_app_id", appID).
			Msg("Start while a session is active, settling previous session")
		c.settleLocked("replaced")
		replaced = true
	}

	available := c.ledger.Get()
	if available <= 0 {
		c.logger.Info().Str("app_id", appID).Msg("No time available, session refused")
		c.publish(events.TimeExpired{})
		c.mu.Unlock()
		if replaced {
			c.cancelReminders()
		}
		return false
	}

	now := c.clock.Now()
	c.session = &Session{
		AppID:     appID,
		StartedAt: now,
		State:     StateActive,
	}
	c.lastCheckpoint = 0
	c.seq++
	seq := c.seq
	c.startTickLocked()

	metrics.SessionsStarted.Inc()
	metrics.SessionActive.Set(1)

	c.publish(events.SessionStarted{AppID: appID, AvailableTime: available})
	c.ledger.SaveShadow(balance.NewShadow(appID, now))

	c.logger.Info().
		Str("app_id", appID).
		Int64("available_seconds", available).
		Msg("Session started")
	c.mu.Unlock()

	if replaced {
		c.cancelReminders()
	}
	c.scheduleReminders(seq, notify.PlanReminders(appID, time.Duration(available)*time.Second))
	return true
}

// Tick recomputes elapsed and remaining time for a running session and
// settles it when the balance is used up. It does nothing while paused or
// idle.
func (c *SessionClock) Tick() {
	c.mu.Lock()
	expired := c.tickLocked()
	c.mu.Unlock()

	if expired {
		c.cancelReminders()
	}
}

func (c *SessionClock) tickGeneration(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		// Superseded loop
		c.mu.Unlock()
		return
	}
	expired := c.tickLocked()
	c.mu.Unlock()

	if expired {
		c.cancelReminders()
	}
}

func (c *SessionClock) tickLocked() bool {
	s := c.session
	if s == nil || s.State != StateActive {
		return false
	}

	elapsed := s.elapsed(c.clock.Now())
	total := c.ledger.Get()
	remaining := max(total-seconds(elapsed), 0)

	c.publish(events.TimeUpdate{
		AppID:     s.AppID,
		Remaining: remaining,
		Elapsed:   seconds(elapsed),
		Total:     total,
	})

	if remaining <= 0 {
		c.settleLocked("expired")
		c.publish(events.TimeExpired{AppID: s.AppID})
		c.logger.Info().Str("app_id", s.AppID).Msg("Session time expired")
		return true
	}

	// Checkpoints refresh lastUpdated on both documents as a liveness
	// marker. They do not debit, so they do not bound what a crash can lose;
	// the open shadow's start time already does that.
	if elapsed-c.lastCheckpoint >= c.checkpointInterval {
		c.lastCheckpoint = elapsed
		c.ledger.Checkpoint()
		c.ledger.SaveShadow(balance.NewShadow(s.AppID, s.StartedAt))
		c.logger.Debug().
			Str("app_id", s.AppID).
			Int64("elapsed_seconds", seconds(elapsed)).
			Msg("Session checkpoint")
	}
	return false
}

// OnBackground pauses a running session. No-op unless Running.
func (c *SessionClock) OnBackground() {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || s.State != StateActive {
		return
	}

	now := c.clock.Now()
	elapsed := s.elapsed(now)
	s.State = StatePaused
	s.PauseStartedAt = now
	c.stopTickLocked()

	c.publish(events.SessionPaused{AppID: s.AppID, ElapsedBeforePause: seconds(elapsed)})
	c.logger.Debug().
		Str("app_id", s.AppID).
		Int64("elapsed_seconds", seconds(elapsed)).
		Msg("Session paused")
}

// OnForeground resumes a paused session. No-op unless Paused.
func (c *SessionClock) OnForeground() {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || s.State != StatePaused {
		return
	}

	if pause := c.clock.Now().Sub(s.PauseStartedAt); pause > 0 {
		s.AccumulatedPause += pause
	}
	s.PauseStartedAt = time.Time{}
	s.State = StateActive
	c.startTickLocked()

	c.publish(events.SessionResumed{AppID: s.AppID})
	c.logger.Debug().
		Str("app_id", s.AppID).
		Dur("accumulated_pause", s.AccumulatedPause).
		Msg("Session resumed")
}

// Stop settles the current session and returns the seconds spent. Idle
// returns 0 and publishes nothing.
func (c *SessionClock) Stop() int64 {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return 0
	}
	spent := c.settleLocked("stopped")
	c.mu.Unlock()

	c.cancelReminders()
	return spent
}

// settleLocked debits the active time, clears the session and closes the
// shadow. The debit is enqueued before the shadow so the balance write
// always lands first.
func (c *SessionClock) settleLocked(reason string) int64 {
	s := c.session
	elapsed := seconds(s.elapsed(c.clock.Now()))
	c.stopTickLocked()

	spent := min(elapsed, c.ledger.Get())
	remaining := c.ledger.Debit(spent)
	c.session = nil
	c.seq++

	metrics.SessionsEnded.WithLabelValues(reason).Inc()
	metrics.SessionActive.Set(0)

	c.publish(events.SessionEnded{AppID: s.AppID, TimeSpent: spent, RemainingTime: remaining})
	c.ledger.SaveShadow(balance.NewShadow(s.AppID, s.StartedAt).Ended())

	c.logger.Info().
		Str("app_id", s.AppID).
		Str("reason", reason).
		Int64("time_spent", spent).
		Int64("available_seconds", remaining).
		Msg("Session ended")
	return spent
}

// CurrentSession returns a snapshot of the session, or nil when idle.
func (c *SessionClock) CurrentSession() *SessionView {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return nil
	}

	now := c.clock.Now()
	elapsed := seconds(s.elapsed(now))
	pause := s.AccumulatedPause
	if s.State == StatePaused {
		pause += now.Sub(s.PauseStartedAt)
	}

	return &SessionView{
		AppID:                   s.AppID,
		StartedAt:               s.StartedAt,
		State:                   s.State,
		ElapsedSeconds:          elapsed,
		RemainingSeconds:        max(c.ledger.Get()-elapsed, 0),
		AccumulatedPauseSeconds: seconds(pause),
	}
}

// AvailableTime returns the live remaining time during a session and the
// settled balance otherwise. It never debits.
func (c *SessionClock) AvailableTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.ledger.Get()
	if c.session == nil {
		return total
	}
	return max(total-seconds(c.session.elapsed(c.clock.Now())), 0)
}

// Close stops the tick loop without settling.
func (c *SessionClock) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTickLocked()
}

func (c *SessionClock) startTickLocked() {
	c.stopTickLocked()

	gen := c.generation
	ticker := c.clock.NewTicker(c.tickInterval)
	stop := make(chan struct{})
	c.ticker = ticker
	c.stopTick = stop

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				c.tickGeneration(gen)
			}
		}
	}()
}

// stopTickLocked halts the loop and invalidates ticks it has in flight.
func (c *SessionClock) stopTickLocked() {
	c.generation++
	if c.stopTick == nil {
		return
	}
	close(c.stopTick)
	c.ticker.Stop()
	c.stopTick = nil
	c.ticker = nil
}

func (c *SessionClock) publish(e events.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

// scheduleReminders hands plan to the sink unless the session numbered seq
// has already been settled, in which case its CancelAll has run or is
// waiting on sinkMu.
func (c *SessionClock) scheduleReminders(seq uint64, plan []notify.Reminder) {
	if c.sink == nil || len(plan) == 0 {
		return
	}
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()

	c.mu.Lock()
	current := c.seq == seq
	c.mu.Unlock()
	if !current {
		c.logger.Debug().Msg("Session ended before reminders were scheduled")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := c.sink.Schedule(ctx, plan); err != nil {
		c.logger.Error().Err(err).Msg("Failed to schedule reminders")
	}
}

func (c *SessionClock) cancelReminders() {
	if c.sink == nil {
		return
	}
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := c.sink.CancelAll(ctx); err != nil {
		c.logger.Error().Err(err).Msg("Failed to cancel reminders")
	}
}
