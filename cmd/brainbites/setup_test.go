package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/brainbites/internal/clock"
	"github.com/goodtune/brainbites/internal/config"
	"github.com/goodtune/brainbites/internal/notify"
	"github.com/goodtune/brainbites/internal/storage/memory"
	redisstore "github.com/goodtune/brainbites/internal/storage/redis"
	"github.com/rs/zerolog"
)

func TestOpenStorage(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.StorageConfig{Type: "memory"}},
		{name: "bolt", cfg: config.StorageConfig{Type: "bolt", Path: filepath.Join(dir, "b.bolt")}},
		{name: "sqlite", cfg: config.StorageConfig{Type: "sqlite", Path: filepath.Join(dir, "s.db")}},
		{name: "unsupported", cfg: config.StorageConfig{Type: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openStorage(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("openStorage failed: %v", err)
			}
			defer store.Close()

			if err := store.Set(context.Background(), "k", "v"); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
		})
	}
}

func TestOpenSink(t *testing.T) {
	sink, err := openSink(config.NotificationsConfig{Sink: "log"}, memory.New(), clock.RealClock{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("openSink failed: %v", err)
	}
	if _, ok := sink.(*notify.LogSink); !ok {
		t.Errorf("Expected LogSink, got %T", sink)
	}

	if _, err := openSink(config.NotificationsConfig{Sink: "redis"}, memory.New(), clock.RealClock{}, zerolog.Nop()); err == nil {
		t.Error("Expected error for redis sink on memory storage")
	}

	mr := miniredis.RunT(t)
	store, err := redisstore.Open(config.RedisConfig{
		Host:         mr.Addr(),
		DialTimeout:  "1s",
		ReadTimeout:  "1s",
		WriteTimeout: "1s",
		KeyPrefix:    "brainbites:kv:",
	})
	if err != nil {
		t.Fatalf("redis open failed: %v", err)
	}
	defer store.Close()

	sink, err = openSink(config.NotificationsConfig{Sink: "redis", RedisKey: "reminders"}, store, clock.RealClock{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("openSink failed: %v", err)
	}
	if _, ok := sink.(*notify.RedisSink); !ok {
		t.Errorf("Expected RedisSink, got %T", sink)
	}
}

