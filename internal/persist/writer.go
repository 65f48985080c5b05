// Package persist implements the asynchronous write queue that sits between
// the accounting core and the key-value store.
//
// Writes are coalesced per key with last-value-wins. The queue is ordered by
// the most recent enqueue, so a key enqueued again moves behind every key
// enqueued before it.
package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goodtune/brainbites/internal/metrics"
	"github.com/goodtune/brainbites/internal/storage"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxRetries is the retry budget for a single key write
	DefaultMaxRetries = 3

	// DefaultInitialBackoff is the delay before the first retry
	DefaultInitialBackoff = 100 * time.Millisecond
)

// Config holds write queue configuration
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
}

type entry struct {
	key   string
	value string
}

// Writer drains enqueued key writes to a storage.Store.
type Writer struct {
	store  storage.Store
	config Config
	logger zerolog.Logger

	mu      sync.Mutex
	pending []entry

	// writeMu serializes drains so entries reach the store in queue order
	writeMu sync.Mutex

	wake    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewWriter creates a write queue for store.
func NewWriter(store storage.Store, config Config, logger zerolog.Logger) *Writer {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = DefaultInitialBackoff
	}

	return &Writer{
		store:  store,
		config: config,
		logger: logger.With().Str("component", "persist").Logger(),
		wake:   make(chan struct{}, 1),
	}
}

// Enqueue schedules value to be written under key. It never blocks on I/O.
func (w *Writer) Enqueue(key, value string) {
	w.mu.Lock()
	for i, e := range w.pending {
		if e.key == key {
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			break
		}
	}
	w.pending = append(w.pending, entry{key: key, value: value})
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Pending reports the number of keys waiting to be written.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Start runs the background drain loop until Stop is called.
func (w *Writer) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true
	w.mu.Unlock()

	go w.run(ctx)
}

func (w *Writer) run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
			if err := w.Flush(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error().Err(err).Msg("Background flush failed")
			}
		}
	}
}

// Flush writes every pending entry in queue order. A write that exhausts the
// retry budget goes back to the front of the queue and ends the flush, so no
// later entry reaches the store ahead of it; the next wake or Flush starts
// over from that entry. Flush returns early with the context error if ctx is
// cancelled; remaining entries stay queued.
func (w *Writer) Flush(ctx context.Context) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		e, ok := w.pop()
		if !ok {
			return nil
		}

		if err := w.write(ctx, e); err != nil {
			w.requeue(e)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.PersistWrites.WithLabelValues("failed").Inc()
			pending := w.Pending()
			w.logger.Error().
				Err(err).
				Str("key", e.key).
				Int("pending", pending).
				Msg("Write failed after retries, holding queue")
			return fmt.Errorf("write %q: %w (%d writes pending)", e.key, err, pending)
		}
		metrics.PersistWrites.WithLabelValues("ok").Inc()
	}
}

// Stop halts the drain loop and flushes what is left.
func (w *Writer) Stop(ctx context.Context) error {
	w.mu.Lock()
	started := w.started
	w.started = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if started {
		cancel()
		<-done
	}
	return w.Flush(ctx)
}

func (w *Writer) pop() (entry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return entry{}, false
	}
	e := w.pending[0]
	w.pending = w.pending[1:]
	return e, true
}

// requeue puts e back at the front. A newer value enqueued for the same key
// meanwhile replaces e but still takes the front slot.
func (w *Writer) requeue(e entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, p := range w.pending {
		if p.key == e.key {
			e = p
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			break
		}
	}
	w.pending = append([]entry{e}, w.pending...)
}

func (w *Writer) write(ctx context.Context, e entry) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.config.InitialBackoff
	policy.MaxElapsedTime = 0

	op := func() error {
		return w.store.Set(ctx, e.key, e.value)
	}
	notify := func(err error, next time.Duration) {
		metrics.PersistWrites.WithLabelValues("retry").Inc()
		w.logger.Warn().
			Err(err).
			Str("key", e.key).
			Dur("retry_in", next).
			Msg("Write failed, retrying")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(w.config.MaxRetries)), ctx)
	return backoff.RetryNotify(op, b, notify)
}
