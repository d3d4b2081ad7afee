package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
	suite TEXT NOT NULL,
	key   TEXT NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (suite, key)
)`

// SQLite is a Store backed by the local database, scoped to one suite.
type SQLite struct {
	db    *sql.DB
	suite string
}

// NewSQLite creates the kv table if needed and returns a store for suite.
func NewSQLite(ctx context.Context, db *sql.DB, suite string) (*SQLite, error) {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQLite{db: db, suite: suite}, nil
}

// Suite returns the app group this store is scoped to.
func (s *SQLite) Suite() string {
	return s.suite
}

func (s *SQLite) GetString(ctx context.Context, key string) (string, bool, error) {
	b, ok, err := s.GetBytes(ctx, key)
	return string(b), ok, err
}

func (s *SQLite) SetString(ctx context.Context, key, value string) error {
	return s.SetBytes(ctx, key, []byte(value))
}

func (s *SQLite) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE suite = ? AND key = ?`, s.suite, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLite) SetBytes(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (suite, key, value) VALUES (?, ?, ?)
		ON CONFLICT (suite, key) DO UPDATE SET value = excluded.value`,
		s.suite, key, value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE suite = ? AND key = ?`, s.suite, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
