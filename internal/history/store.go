// Package history caches conversation transcripts by session id in front
// of the server-side interaction history.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nomdev/corbo/internal/chat"
)

// ErrCorruptEntry indicates a stored transcript could not be decoded.
// Use errors.Is() to check for it in calling code.
var ErrCorruptEntry = errors.New("corrupt history entry")

// Store persists whole transcripts. Put replaces the stored transcript
// atomically.
type Store interface {
	Get(ctx context.Context, sessionID int64) ([]chat.Element, bool, error)
	Put(ctx context.Context, sessionID int64, elements []chat.Element) error
	Delete(ctx context.Context, sessionID int64) error
}

func encodeElements(elements []chat.Element) ([]byte, error) {
	if elements == nil {
		elements = []chat.Element{}
	}
	data, err := json.Marshal(elements)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return data, nil
}

func decodeElements(data []byte) ([]chat.Element, error) {
	var elements []chat.Element
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptEntry, err)
	}
	return elements, nil
}
