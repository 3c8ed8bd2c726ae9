package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface. It persists the
// operator-editable runtime settings: the notification chat id captured via
// the bot, and per-account enabled overrides. Activity state itself is
// in-memory only and deliberately not stored here.
type Store interface {
	Close() error
	Settings() SettingsStore
}

// SettingsStore manages operator-editable settings.
type SettingsStore interface {
	// ChatID returns the captured notification chat id, or ErrNotFound when
	// none has been set yet.
	ChatID(ctx context.Context) (int64, error)
	SetChatID(ctx context.Context, id int64) error

	// AccountOverrides maps username to an enabled flag that overrides the
	// configured value. Absent usernames keep their configured flag.
	AccountOverrides(ctx context.Context) (map[string]bool, error)
	SetAccountEnabled(ctx context.Context, username string, enabled bool) error
}
