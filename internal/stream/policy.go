package stream

import (
	"fmt"
	"log/slog"
)

// FailurePolicy decides what happens to a frame that is not valid JSON.
// Returning nil drops the frame and keeps decoding; returning an error
// aborts the stream with it.
type FailurePolicy interface {
	OnDecodeError(logger *slog.Logger, payload []byte, err error) error
}

// DropFrame logs the offending payload and continues with the next frame.
type DropFrame struct{}

func (DropFrame) OnDecodeError(logger *slog.Logger, payload []byte, err error) error {
	logger.Error("failed to decode stream frame", "payload", string(payload), "error", err)
	return nil
}

// Strict aborts the stream on the first undecodable frame.
type Strict struct{}

func (Strict) OnDecodeError(logger *slog.Logger, payload []byte, err error) error {
	logger.Error("aborting stream on undecodable frame", "payload", string(payload), "error", err)
	return fmt.Errorf("decode frame: %w", err)
}
