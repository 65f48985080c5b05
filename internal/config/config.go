package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Session       SessionConfig       `mapstructure:"session"`
	Persistence   PersistenceConfig   `mapstructure:"persistence"`
	Events        EventsConfig        `mapstructure:"events"`
	Rewards       RewardsConfig       `mapstructure:"rewards"`
	Quiz          QuizConfig          `mapstructure:"quiz"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// ServerConfig defines listen addresses for the control API and metrics
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	APIPort     int    `mapstructure:"api_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // bolt, redis, sqlite or memory
	Path  string      `mapstructure:"path"` // file path for bolt and sqlite
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SessionConfig defines session clock timing
type SessionConfig struct {
	TickInterval          string `mapstructure:"tick_interval"`
	CheckpointInterval    string `mapstructure:"checkpoint_interval"`
	StaleSessionThreshold string `mapstructure:"stale_session_threshold"`
}

// PersistenceConfig defines the write queue retry budget
type PersistenceConfig struct {
	MaxRetries     int    `mapstructure:"max_retries"`
	InitialBackoff string `mapstructure:"initial_backoff"`
	FlushTimeout   string `mapstructure:"flush_timeout"`
}

// EventsConfig defines event feed settings
type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// RewardsConfig defines how many seconds a correct answer earns
type RewardsConfig struct {
	CorrectAnswerSeconds int `mapstructure:"correct_answer_seconds"`
	MilestoneSeconds     int `mapstructure:"milestone_seconds"`
	MilestoneEvery       int `mapstructure:"milestone_every"`
}

// QuizConfig defines the question provider
type QuizConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	DefaultCategory string `mapstructure:"default_category"`
	Timeout         string `mapstructure:"timeout"`
	RecentWindow    int    `mapstructure:"recent_window"`
	MaxAttempts     int    `mapstructure:"max_attempts"`
}

// NotificationsConfig selects the reminder sink
type NotificationsConfig struct {
	Sink     string `mapstructure:"sink"` // log or redis
	RedisKey string `mapstructure:"redis_key"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("BRAINBITES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.api_port", 8095)
	v.SetDefault("server.metrics_port", 9095)

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/brainbites/brainbites.bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key_prefix", "brainbites:kv:")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Session defaults
	v.SetDefault("session.tick_interval", "1s")
	v.SetDefault("session.checkpoint_interval", "30s")
	v.SetDefault("session.stale_session_threshold", "5m")

	// Persistence defaults
	v.SetDefault("persistence.max_retries", 3)
	v.SetDefault("persistence.initial_backoff", "100ms")
	v.SetDefault("persistence.flush_timeout", "5s")

	v.SetDefault("events.buffer_size", 64)

	// Reward defaults match the quiz screen: 30s per answer, 2m every fifth streak
	v.SetDefault("rewards.correct_answer_seconds", 30)
	v.SetDefault("rewards.milestone_seconds", 120)
	v.SetDefault("rewards.milestone_every", 5)

	// Quiz defaults
	v.SetDefault("quiz.base_url", "https://brain-bites-api.onrender.com")
	v.SetDefault("quiz.default_category", "funfacts")
	v.SetDefault("quiz.timeout", "10s")
	v.SetDefault("quiz.recent_window", 30)
	v.SetDefault("quiz.max_attempts", 3)

	// Notification defaults
	v.SetDefault("notifications.sink", "log")
	v.SetDefault("notifications.redis_key", "brainbites:reminders")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "bolt"
	case "bolt", "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	if cfg.Storage.Type == "bolt" || cfg.Storage.Type == "sqlite" {
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for %s storage", cfg.Storage.Type)
		}
		// Ensure storage directory exists
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	for name, raw := range map[string]string{
		"session.tick_interval":           cfg.Session.TickInterval,
		"session.checkpoint_interval":     cfg.Session.CheckpointInterval,
		"session.stale_session_threshold": cfg.Session.StaleSessionThreshold,
		"persistence.initial_backoff":     cfg.Persistence.InitialBackoff,
		"persistence.flush_timeout":       cfg.Persistence.FlushTimeout,
		"quiz.timeout":                    cfg.Quiz.Timeout,
	} {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, raw, err)
		}
	}

	if cfg.Rewards.CorrectAnswerSeconds <= 0 || cfg.Rewards.MilestoneSeconds <= 0 {
		return fmt.Errorf("reward amounts must be positive")
	}
	if cfg.Rewards.MilestoneEvery <= 0 {
		return fmt.Errorf("rewards.milestone_every must be positive")
	}

	switch cfg.Notifications.Sink {
	case "log", "redis":
	default:
		return fmt.Errorf("unsupported notification sink: %s", cfg.Notifications.Sink)
	}
	if cfg.Notifications.Sink == "redis" && cfg.Storage.Type != "redis" {
		return fmt.Errorf("redis notification sink requires redis storage")
	}

	return nil
}

// ParseDuration parses a duration string with a fallback
func ParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
