package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goodtune/brainbites/internal/clock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// LogSink writes reminders to the log. Useful when no delivery channel is
// attached.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "notify").Logger()}
}

func (s *LogSink) Schedule(_ context.Context, reminders []Reminder) error {
	for _, r := range reminders {
		s.logger.Info().
			Str("type", string(r.Kind)).
			Str("app_id", r.AppID).
			Dur("offset", r.Offset).
			Str("title", r.Title).
			Msg("Reminder scheduled")
	}
	return nil
}

func (s *LogSink) CancelAll(context.Context) error {
	s.logger.Info().Msg("Reminders cancelled")
	return nil
}

// RedisSink stores reminders in a sorted set scored by their trigger time
// in epoch milliseconds, for an external notifier to poll with
// ZRANGEBYSCORE.
type RedisSink struct {
	client *redis.Client
	key    string
	clock  clock.Clock
	logger zerolog.Logger
}

// NewRedisSink creates a RedisSink writing to key.
func NewRedisSink(client *redis.Client, key string, clk clock.Clock, logger zerolog.Logger) *RedisSink {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &RedisSink{
		client: client,
		key:    key,
		clock:  clk,
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

func (s *RedisSink) Schedule(ctx context.Context, reminders []Reminder) error {
	if len(reminders) == 0 {
		return nil
	}

	now := s.clock.Now()
	members := make([]redis.Z, 0, len(reminders))
	for _, r := range reminders {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode reminder: %w", err)
		}
		members = append(members, redis.Z{
			Score:  float64(now.Add(r.Offset).UnixMilli()),
			Member: string(data),
		})
	}

	if err := s.client.ZAdd(ctx, s.key, members...).Err(); err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}

	s.logger.Debug().Int("count", len(members)).Str("key", s.key).Msg("Reminders queued")
	return nil
}

func (s *RedisSink) CancelAll(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to cancel reminders: %w", err)
	}
	return nil
}
