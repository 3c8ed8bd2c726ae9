package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/goodtune/lastwatch/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	keyChatID       = "lastwatch:settings:chat_id"
	keyOverrideHash = "lastwatch:settings:account_overrides"
)

type settingsStore struct {
	client *redis.Client
}

func (s *settingsStore) ChatID(ctx context.Context) (int64, error) {
	raw, err := s.client.Get(ctx, keyChatID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get chat id: %w", err)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt chat id %q: %w", raw, err)
	}
	return id, nil
}

func (s *settingsStore) SetChatID(ctx context.Context, id int64) error {
	if err := s.client.Set(ctx, keyChatID, strconv.FormatInt(id, 10), 0).Err(); err != nil {
		return fmt.Errorf("store chat id: %w", err)
	}
	return nil
}

func (s *settingsStore) AccountOverrides(ctx context.Context) (map[string]bool, error) {
	raw, err := s.client.HGetAll(ctx, keyOverrideHash).Result()
	if err != nil {
		return nil, fmt.Errorf("get account overrides: %w", err)
	}

	overrides := make(map[string]bool, len(raw))
	for username, value := range raw {
		overrides[username] = value == "1"
	}
	return overrides, nil
}

func (s *settingsStore) SetAccountEnabled(ctx context.Context, username string, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	if err := s.client.HSet(ctx, keyOverrideHash, username, value).Err(); err != nil {
		return fmt.Errorf("store account override for %s: %w", username, err)
	}
	return nil
}
