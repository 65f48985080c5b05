package main

import (
	"fmt"
	"os"

	"github.com/goodtune/brainbites/internal/clock"
	"github.com/goodtune/brainbites/internal/config"
	"github.com/goodtune/brainbites/internal/notify"
	"github.com/goodtune/brainbites/internal/storage"
	boltstore "github.com/goodtune/brainbites/internal/storage/bolt"
	"github.com/goodtune/brainbites/internal/storage/memory"
	redisstore "github.com/goodtune/brainbites/internal/storage/redis"
	"github.com/goodtune/brainbites/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "bolt", "":
		return boltstore.Open(cfg.Path)
	case "sqlite":
		return sqlite.Open(cfg.Path)
	case "redis":
		return redisstore.Open(cfg.Redis)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// openSink picks the reminder sink. The redis sink shares the storage
// client, which config validation guarantees is redis.
func openSink(cfg config.NotificationsConfig, store storage.Store, clk clock.Clock, logger zerolog.Logger) (notify.Sink, error) {
	switch cfg.Sink {
	case "redis":
		rs, ok := store.(*redisstore.Store)
		if !ok {
			return nil, fmt.Errorf("redis notification sink requires redis storage")
		}
		return notify.NewRedisSink(rs.Client(), cfg.RedisKey, clk, logger), nil
	default:
		return notify.NewLogSink(logger), nil
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
