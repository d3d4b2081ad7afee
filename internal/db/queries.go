package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Transcript is the stored history of one session.
type Transcript struct {
	ID           *surrealmodels.RecordID `json:"id,omitempty"`
	SessionID    int64                   `json:"session_id"`
	Elements     string                  `json:"elements"`
	ElementCount int                     `json:"element_count"`
	Updated      time.Time               `json:"updated,omitempty"`
}

// QueryGetTranscript returns the transcript of sessionID.
// Returns ErrNotFound when there is none.
func (c *Client) QueryGetTranscript(ctx context.Context, sessionID int64) (*Transcript, error) {
	results, err := surrealdb.Query[[]Transcript](ctx, c.db, `
		SELECT * FROM type::record("transcript", $id)
	`, map[string]any{"id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("get transcript %d: %w", sessionID, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// QueryUpsertTranscript replaces the transcript of sessionID in one
// statement, so readers see either the old or the new elements.
func (c *Client) QueryUpsertTranscript(ctx context.Context, sessionID int64, elements string, count int) (*Transcript, error) {
	results, err := surrealdb.Query[[]Transcript](ctx, c.db, `
		UPSERT type::record("transcript", $id) SET
			session_id = $id,
			elements = $elements,
			element_count = $count,
			updated = time::now()
		RETURN AFTER
	`, map[string]any{
		"id":       sessionID,
		"elements": elements,
		"count":    count,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert transcript: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("upsert transcript: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// QueryDeleteTranscript removes the transcript of sessionID. Deleting a
// missing transcript is not an error.
func (c *Client) QueryDeleteTranscript(ctx context.Context, sessionID int64) (int, error) {
	results, err := surrealdb.Query[[]Transcript](ctx, c.db, `
		DELETE type::record("transcript", $id) RETURN BEFORE
	`, map[string]any{"id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("delete transcript: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}
