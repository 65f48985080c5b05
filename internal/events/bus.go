package events

import (
	"sync"

	"github.com/goodtune/brainbites/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultBufferSize is used when NewBus is given a non-positive size.
const DefaultBufferSize = 64

// Bus fans events out to any number of subscribers. Publish never blocks:
// a subscriber whose buffer is full misses the event.
type Bus struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
	bufferSize  int
	logger      zerolog.Logger
}

// NewBus creates an event bus.
func NewBus(bufferSize int, logger zerolog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		subscribers: make(map[chan Event]struct{}),
		bufferSize:  bufferSize,
		logger:      logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe returns a channel receiving every event published from now on.
// The caller must invoke the returned cancel function to avoid leaks; it is
// safe to call more than once.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.bufferSize)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// SubscribeFunc calls fn for every event on its own goroutine, in publish
// order. The returned function unsubscribes and is idempotent.
func (b *Bus) SubscribeFunc(fn func(Event)) func() {
	ch, cancel := b.Subscribe()
	go func() {
		for e := range ch {
			fn(e)
		}
	}()
	return cancel
}

// Publish delivers e to every subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			metrics.EventsDropped.WithLabelValues(string(e.Kind())).Inc()
			b.logger.Warn().
				Str("type", string(e.Kind())).
				Msg("Subscriber buffer full, event dropped")
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
