package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/nomdev/corbo/internal/chat"
	"github.com/nomdev/corbo/internal/db"
)

// SurrealStore keeps transcripts in a shared SurrealDB so every device of
// the user reads the same cache.
type SurrealStore struct {
	client *db.Client
}

// NewSurrealStore initializes the transcript schema on client.
func NewSurrealStore(ctx context.Context, client *db.Client) (*SurrealStore, error) {
	if err := client.InitSchema(ctx); err != nil {
		return nil, err
	}
	return &SurrealStore{client: client}, nil
}

func (s *SurrealStore) Get(ctx context.Context, sessionID int64) ([]chat.Element, bool, error) {
	t, err := s.client.QueryGetTranscript(ctx, sessionID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	elements, err := decodeElements([]byte(t.Elements))
	if err != nil {
		return nil, false, fmt.Errorf("get history %d: %w", sessionID, err)
	}
	return elements, true, nil
}

func (s *SurrealStore) Put(ctx context.Context, sessionID int64, elements []chat.Element) error {
	data, err := encodeElements(elements)
	if err != nil {
		return err
	}
	_, err = s.client.QueryUpsertTranscript(ctx, sessionID, string(data), len(elements))
	return err
}

func (s *SurrealStore) Delete(ctx context.Context, sessionID int64) error {
	_, err := s.client.QueryDeleteTranscript(ctx, sessionID)
	return err
}
