package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/brainbites/internal/config"
	"github.com/goodtune/brainbites/internal/storage"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	// miniredis.Addr() returns "host:port", so Port stays zero
	cfg := config.RedisConfig{
		Host:         mr.Addr(),
		Port:         0,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 1,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
		KeyPrefix:    "brainbites:kv:",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}

	return store, mr
}

func TestStore_SetAndGet(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	if err := store.Set(ctx, "brainbites_session_data", `{"sessionEnded":true}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Keys are namespaced
	raw, err := mr.Get("brainbites:kv:brainbites_session_data")
	if err != nil {
		t.Fatalf("Expected prefixed key in redis: %v", err)
	}
	if raw != `{"sessionEnded":true}` {
		t.Errorf("Unexpected raw value %q", raw)
	}

	got, err := store.Get(ctx, "brainbites_session_data")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != raw {
		t.Errorf("Expected %q, got %q", raw, got)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	_ = store.Set(ctx, "k", "v")

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if mr.Exists("brainbites:kv:k") {
		t.Error("Expected key to be removed")
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete of missing key failed: %v", err)
	}
}

func TestOpen_InvalidTimeout(t *testing.T) {
	_, err := Open(config.RedisConfig{Host: "localhost", DialTimeout: "bogus", ReadTimeout: "1s", WriteTimeout: "1s"})
	if err == nil {
		t.Fatal("Expected error for invalid dial_timeout")
	}
}

func TestOpen_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Open(config.RedisConfig{Host: addr, DialTimeout: "200ms", ReadTimeout: "200ms", WriteTimeout: "200ms"})
	if err == nil {
		t.Fatal("Expected connection error")
	}
}
