package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("BRAINBITES_STORAGE_TYPE", "memory")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Storage.Type != "memory" {
		t.Errorf("Expected storage type memory from env, got %s", cfg.Storage.Type)
	}
	if cfg.Server.APIPort != 8095 {
		t.Errorf("Expected default API port 8095, got %d", cfg.Server.APIPort)
	}
	if got := ParseDuration(cfg.Session.StaleSessionThreshold, 0); got != 5*time.Minute {
		t.Errorf("Expected stale threshold 5m, got %v", got)
	}
	if got := ParseDuration(cfg.Session.CheckpointInterval, 0); got != 30*time.Second {
		t.Errorf("Expected checkpoint interval 30s, got %v", got)
	}
	if cfg.Rewards.CorrectAnswerSeconds != 30 || cfg.Rewards.MilestoneSeconds != 120 || cfg.Rewards.MilestoneEvery != 5 {
		t.Errorf("Unexpected reward defaults: %+v", cfg.Rewards)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
storage:
  type: sqlite
  path: `+filepath.Join(dir, "data", "brainbites.db")+`
session:
  tick_interval: 500ms
  stale_session_threshold: 10m
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Storage.Type != "sqlite" {
		t.Errorf("Expected sqlite storage, got %s", cfg.Storage.Type)
	}
	if _, err := os.Stat(filepath.Join(dir, "data")); err != nil {
		t.Errorf("Expected storage directory to be created: %v", err)
	}
	if got := ParseDuration(cfg.Session.TickInterval, time.Second); got != 500*time.Millisecond {
		t.Errorf("Expected tick interval 500ms, got %v", got)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "unknown storage",
			body: "storage:\n  type: etcd\n",
		},
		{
			name: "bad duration",
			body: "storage:\n  type: memory\nsession:\n  tick_interval: soon\n",
		},
		{
			name: "redis sink without redis storage",
			body: "storage:\n  type: memory\nnotifications:\n  sink: redis\n",
		},
		{
			name: "zero milestone",
			body: "storage:\n  type: memory\nrewards:\n  milestone_every: 0\n",
		},
		{
			name: "bad port",
			body: "storage:\n  type: memory\nserver:\n  api_port: 70000\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatal("Expected validation error, got nil")
			}
		})
	}
}

func TestParseDurationFallback(t *testing.T) {
	if got := ParseDuration("", 3*time.Second); got != 3*time.Second {
		t.Errorf("Expected fallback, got %v", got)
	}
	if got := ParseDuration("2m", time.Second); got != 2*time.Minute {
		t.Errorf("Expected 2m, got %v", got)
	}
}
