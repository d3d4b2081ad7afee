package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nomdev/corbo/internal/chat"
	"github.com/nomdev/corbo/internal/metrics"
	"github.com/nomdev/corbo/internal/models"
)

// Fetcher loads the authoritative interaction history of a session.
type Fetcher interface {
	ListSessionInteractions(ctx context.Context, sessionID int64) (*models.SessionInteractions, error)
}

// Service serves transcripts from the store and falls back to the server
// when the cached copy is missing or unusable.
type Service struct {
	store   Store
	fetcher Fetcher
	metrics *metrics.Collector
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records server fetch timings into m.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a history service.
func NewService(store Store, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{store: store, fetcher: fetcher, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Valid reports whether a cached transcript can be shown as is: it must
// be non-empty and every element must have text.
func Valid(elements []chat.Element) bool {
	if len(elements) == 0 {
		return false
	}
	for _, e := range elements {
		if e.Text == nil {
			return false
		}
	}
	return true
}

// Retrieve returns the transcript of sessionID. A valid cached copy is
// returned directly; anything else is dropped and rebuilt from the server,
// and a non-empty rebuild is written back.
func (s *Service) Retrieve(ctx context.Context, sessionID int64) ([]chat.Element, error) {
	if elements, ok := s.cached(ctx, sessionID); ok {
		s.logger.Debug("chat history cache hit", "session_id", sessionID)
		return elements, nil
	}
	s.logger.Debug("chat history cache miss", "session_id", sessionID)

	start := time.Now()
	data, err := s.fetcher.ListSessionInteractions(ctx, sessionID)
	s.metrics.RecordResult(metrics.OpHistoryFetch, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("fetch history %d: %w", sessionID, err)
	}

	result := FromInteractions(data.InteractionList, s.logger)
	if len(result) > 0 {
		s.Save(ctx, sessionID, result)
	}
	return result, nil
}

func (s *Service) cached(ctx context.Context, sessionID int64) ([]chat.Element, bool) {
	elements, ok, err := s.store.Get(ctx, sessionID)
	switch {
	case errors.Is(err, ErrCorruptEntry):
		s.logger.Warn("dropping unreadable cached history", "session_id", sessionID, "error", err)
		s.forget(ctx, sessionID)
		return nil, false
	case err != nil:
		s.logger.Warn("failed to read cached history", "session_id", sessionID, "error", err)
		return nil, false
	case !ok:
		return nil, false
	}

	if !Valid(elements) {
		s.logger.Warn("dropping invalid cached history", "session_id", sessionID, "elements", len(elements))
		s.forget(ctx, sessionID)
		return nil, false
	}
	return elements, true
}

func (s *Service) forget(ctx context.Context, sessionID int64) {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		s.logger.Error("failed to delete cached history", "session_id", sessionID, "error", err)
	}
}

// Save writes elements for sessionID. Failures are logged, not returned.
func (s *Service) Save(ctx context.Context, sessionID int64, elements []chat.Element) {
	if err := s.store.Put(ctx, sessionID, elements); err != nil {
		s.logger.Error("saveHistory failed", "session_id", sessionID, "error", err)
	}
}

// Put writes elements for sessionID and returns any failure.
func (s *Service) Put(ctx context.Context, sessionID int64, elements []chat.Element) error {
	return s.store.Put(ctx, sessionID, elements)
}

// Forget removes the cached transcript of sessionID.
func (s *Service) Forget(ctx context.Context, sessionID int64) error {
	return s.store.Delete(ctx, sessionID)
}
