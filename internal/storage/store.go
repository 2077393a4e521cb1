// Package storage persists bot data on disk: a SQLite settings store
// keyed per nick and per channel, and plain-text nick and host blocklists.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Store is the persistent key/value database. Plugins use it for per-nick
// preferences and per-channel settings that must survive restarts. Nick
// and channel names are case-folded, keys are kept as given.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nick_values (
		nick  TEXT NOT NULL,
		key   TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (nick, key)
	);

	CREATE TABLE IF NOT EXISTS channel_values (
		channel TEXT NOT NULL,
		key     TEXT NOT NULL,
		value   TEXT NOT NULL,
		PRIMARY KEY (channel, key)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func fold(name string) string { return strings.ToLower(name) }

// SetNickValue stores value under (nick, key), replacing any previous one.
func (s *Store) SetNickValue(nick, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO nick_values (nick, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(nick, key) DO UPDATE SET value = excluded.value`,
		fold(nick), key, value)
	if err != nil {
		return fmt.Errorf("failed to store value for %s/%s: %w", nick, key, err)
	}
	return nil
}

// NickValue fetches the value stored under (nick, key). The second return
// reports whether a value was present.
func (s *Store) NickValue(nick, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM nick_values WHERE nick = ? AND key = ?`,
		fold(nick), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read value for %s/%s: %w", nick, key, err)
	}
	return value, true, nil
}

// DeleteNickValue removes the value stored under (nick, key), if any.
func (s *Store) DeleteNickValue(nick, key string) error {
	_, err := s.db.Exec(
		`DELETE FROM nick_values WHERE nick = ? AND key = ?`, fold(nick), key)
	if err != nil {
		return fmt.Errorf("failed to delete value for %s/%s: %w", nick, key, err)
	}
	return nil
}

// SetChannelValue stores value under (channel, key), replacing any
// previous one.
func (s *Store) SetChannelValue(channel, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO channel_values (channel, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(channel, key) DO UPDATE SET value = excluded.value`,
		fold(channel), key, value)
	if err != nil {
		return fmt.Errorf("failed to store value for %s/%s: %w", channel, key, err)
	}
	return nil
}

// ChannelValue fetches the value stored under (channel, key). The second
// return reports whether a value was present.
func (s *Store) ChannelValue(channel, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM channel_values WHERE channel = ? AND key = ?`,
		fold(channel), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read value for %s/%s: %w", channel, key, err)
	}
	return value, true, nil
}

// DeleteChannelValue removes the value stored under (channel, key), if any.
func (s *Store) DeleteChannelValue(channel, key string) error {
	_, err := s.db.Exec(
		`DELETE FROM channel_values WHERE channel = ? AND key = ?`, fold(channel), key)
	if err != nil {
		return fmt.Errorf("failed to delete value for %s/%s: %w", channel, key, err)
	}
	return nil
}
