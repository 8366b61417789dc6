package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionKeySetting is the settings key holding the signed-in email or
// phone number.
const SessionKeySetting = "session.key"

// Setting returns the value stored under key, or "" if unset.
func (s *Store) Setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores value under key, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes key. Deleting a missing key is not an error.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// LoadKey returns the persisted session key. Implements session.KeyStore.
func (s *Store) LoadKey(ctx context.Context) (string, error) {
	return s.Setting(ctx, SessionKeySetting)
}

// SaveKey persists the session key. Implements session.KeyStore.
func (s *Store) SaveKey(ctx context.Context, key string) error {
	return s.SetSetting(ctx, SessionKeySetting, key)
}

// ClearKey forgets the session key. Implements session.KeyStore.
func (s *Store) ClearKey(ctx context.Context) error {
	return s.DeleteSetting(ctx, SessionKeySetting)
}
