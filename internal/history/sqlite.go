package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nomdev/corbo/internal/chat"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chat_history (
	session_id INTEGER PRIMARY KEY,
	elements   TEXT    NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps one row per session in the local database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the history table if needed.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create history table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, sessionID int64) ([]chat.Element, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT elements FROM chat_history WHERE session_id = ?`, sessionID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get history %d: %w", sessionID, err)
	}

	elements, err := decodeElements(data)
	if err != nil {
		return nil, false, fmt.Errorf("get history %d: %w", sessionID, err)
	}
	return elements, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, sessionID int64, elements []chat.Element) error {
	data, err := encodeElements(elements)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history write: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_history (session_id, elements, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			elements = excluded.elements,
			updated_at = excluded.updated_at`,
		sessionID, string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("put history %d: %w", sessionID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history %d: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, sessionID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_history WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete history %d: %w", sessionID, err)
	}
	return nil
}
