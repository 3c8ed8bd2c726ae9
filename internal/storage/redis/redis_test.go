package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/goodtune/lastwatch/internal/config"
	"github.com/goodtune/lastwatch/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := Open(config.RedisConfig{
		Host:         mr.Addr(),
		DialTimeout:  "1s",
		ReadTimeout:  "1s",
		WriteTimeout: "1s",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_InvalidTimeout(t *testing.T) {
	_, err := Open(config.RedisConfig{
		Host:        "localhost",
		DialTimeout: "not-a-duration",
	})
	if err == nil {
		t.Fatal("expected error for invalid dial_timeout")
	}
}

func TestChatID_NotFound(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Settings().ChatID(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestChatID_Roundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	settings := store.Settings()

	if err := settings.SetChatID(ctx, -1001234567890); err != nil {
		t.Fatalf("SetChatID: %v", err)
	}

	id, err := settings.ChatID(ctx)
	if err != nil {
		t.Fatalf("ChatID: %v", err)
	}
	if id != -1001234567890 {
		t.Errorf("id = %d, want -1001234567890", id)
	}
}

func TestAccountOverrides(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	settings := store.Settings()

	overrides, err := settings.AccountOverrides(ctx)
	if err != nil {
		t.Fatalf("AccountOverrides: %v", err)
	}
	if len(overrides) != 0 {
		t.Errorf("fresh store overrides = %v, want empty", overrides)
	}

	if err := settings.SetAccountEnabled(ctx, "alice", false); err != nil {
		t.Fatalf("SetAccountEnabled: %v", err)
	}
	if err := settings.SetAccountEnabled(ctx, "alice", true); err != nil {
		t.Fatalf("SetAccountEnabled: %v", err)
	}
	if err := settings.SetAccountEnabled(ctx, "bob", false); err != nil {
		t.Fatalf("SetAccountEnabled: %v", err)
	}

	overrides, err = settings.AccountOverrides(ctx)
	if err != nil {
		t.Fatalf("AccountOverrides: %v", err)
	}
	if !overrides["alice"] {
		t.Error("latest write for alice must win")
	}
	if overrides["bob"] {
		t.Error("bob must be disabled")
	}
}
