package bolt

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goodtune/lastwatch/internal/storage"
	"go.etcd.io/bbolt"
)

const keyChatID = "chat_id"

type settingsStore struct {
	db *bbolt.DB
}

func (s *settingsStore) ChatID(_ context.Context) (int64, error) {
	var id int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(bucketSettings)).Get([]byte(keyChatID))
		if raw == nil {
			return storage.ErrNotFound
		}
		parsed, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("corrupt chat id %q: %w", raw, err)
		}
		id = parsed
		return nil
	})
	return id, err
}

func (s *settingsStore) SetChatID(_ context.Context, id int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		value := strconv.FormatInt(id, 10)
		if err := tx.Bucket([]byte(bucketSettings)).Put([]byte(keyChatID), []byte(value)); err != nil {
			return fmt.Errorf("store chat id: %w", err)
		}
		return nil
	})
}

func (s *settingsStore) AccountOverrides(_ context.Context) (map[string]bool, error) {
	overrides := make(map[string]bool)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketOverrides)).ForEach(func(k, v []byte) error {
			overrides[string(k)] = string(v) == "1"
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return overrides, nil
}

func (s *settingsStore) SetAccountEnabled(_ context.Context, username string, enabled bool) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		value := "0"
		if enabled {
			value = "1"
		}
		if err := tx.Bucket([]byte(bucketOverrides)).Put([]byte(username), []byte(value)); err != nil {
			return fmt.Errorf("store account override for %s: %w", username, err)
		}
		return nil
	})
}
