// Package stream decodes newline-delimited JSON answer streams.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nomdev/corbo/internal/models"
)

// DefaultReadSize is how many bytes are requested from the transport per read.
const DefaultReadSize = 4096

// Chunk is one decoded frame.
type Chunk = models.AnswerChunk

// Stats summarizes a decoded stream.
type Stats struct {
	Frames  int64 // frames handed to the handler
	Dropped int64 // frames that failed to decode
	Bytes   int64
}

// Decoder splits a byte stream into frames and decodes each as a Chunk.
// A Decoder holds no per-stream state and may be reused concurrently.
type Decoder struct {
	detector FrameDetector
	policy   FailurePolicy
	readSize int
	logger   *slog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithDetector replaces the TrailingNewline frame detector.
func WithDetector(d FrameDetector) Option {
	return func(dec *Decoder) { dec.detector = d }
}

// WithFailurePolicy replaces the DropFrame policy.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(dec *Decoder) { dec.policy = p }
}

// WithReadSize sets the transport read size.
func WithReadSize(n int) Option {
	return func(dec *Decoder) {
		if n > 0 {
			dec.readSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(dec *Decoder) { dec.logger = l }
}

// NewDecoder creates a decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		detector: TrailingNewline{},
		policy:   DropFrame{},
		readSize: DefaultReadSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode reads r until EOF, calling handle for every decoded frame in
// arrival order. A non-empty remainder at EOF is flushed as a final frame.
// Decoding stops at the first handler error, read error, policy error or
// context cancellation, and that error is returned.
func (d *Decoder) Decode(ctx context.Context, r io.Reader, handle func(Chunk) error) (Stats, error) {
	var stats Stats
	var buf []byte
	readBuf := make([]byte, d.readSize)

	candidate, skip := d.detector.(candidateDetector)

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		n, readErr := r.Read(readBuf)
		data := readBuf[:n]
		stats.Bytes += int64(n)

		for len(data) > 0 {
			take := 1
			if skip {
				i := bytes.IndexByte(data, candidate.Candidate())
				if i < 0 {
					buf = append(buf, data...)
					break
				}
				take = i + 1
			}
			buf = append(buf, data[:take]...)
			data = data[take:]

			if !d.detector.Complete(buf) {
				continue
			}
			if err := d.emit(buf, &stats, handle); err != nil {
				return stats, err
			}
			buf = buf[:0]
		}

		if errors.Is(readErr, io.EOF) {
			if len(buf) > 0 {
				if err := d.emit(buf, &stats, handle); err != nil {
					return stats, err
				}
			}
			return stats, nil
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			return stats, fmt.Errorf("read stream: %w", readErr)
		}
	}
}

func (d *Decoder) emit(payload []byte, stats *Stats, handle func(Chunk) error) error {
	var chunk Chunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		stats.Dropped++
		return d.policy.OnDecodeError(d.logger, payload, err)
	}
	stats.Frames++
	return handle(chunk)
}
