package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/goodtune/lastwatch/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "lastwatch.bolt"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
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

	// Overwriting replaces the stored value.
	if err := settings.SetChatID(ctx, 42); err != nil {
		t.Fatalf("SetChatID: %v", err)
	}
	if id, _ := settings.ChatID(ctx); id != 42 {
		t.Errorf("id = %d, want 42", id)
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
	if err := settings.SetAccountEnabled(ctx, "bob", true); err != nil {
		t.Fatalf("SetAccountEnabled: %v", err)
	}

	overrides, err = settings.AccountOverrides(ctx)
	if err != nil {
		t.Fatalf("AccountOverrides: %v", err)
	}
	want := map[string]bool{"alice": false, "bob": true}
	if len(overrides) != len(want) {
		t.Fatalf("overrides = %v, want %v", overrides, want)
	}
	for name, enabled := range want {
		if overrides[name] != enabled {
			t.Errorf("overrides[%s] = %v, want %v", name, overrides[name], enabled)
		}
	}
}

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "lastwatch.bolt")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if err := store.Settings().SetChatID(context.Background(), 7); err != nil {
		t.Errorf("SetChatID: %v", err)
	}
}
