// Package analytics records product events. Delivery is fire and forget:
// tracking never fails the caller.
package analytics

import (
	"log/slog"
	"sort"
	"sync"
)

// Event names.
const (
	EventErrorShown          = "ErrorShown"
	EventChatInteraction     = "ChatInteraction"
	EventChatSessionStarted  = "ChatSessionStarted"
	EventChatSessionRestored = "ChatSessionRestored"
	EventChatSessionEnded    = "ChatSessionEnded"
	EventPhoneLogin          = "PhoneLogin"
)

// Props are event properties.
type Props map[string]any

// Sink receives events.
type Sink interface {
	Track(name string, props Props)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Track(string, Props) {}

// SlogSink writes events to a logger at INFO.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink logging to logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger.With("component", "analytics")}
}

func (s *SlogSink) Track(name string, props Props) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]any, 0, 2*len(keys)+2)
	attrs = append(attrs, "event", name)
	for _, k := range keys {
		attrs = append(attrs, k, props[k])
	}
	s.logger.Info("track", attrs...)
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

// Recorded is one tracked event.
type Recorded struct {
	Name  string
	Props Props
}

func (r *Recorder) Track(name string, props Props) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Name: name, Props: props})
}

// Events returns the events tracked so far.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}

// Named returns the events called name.
func (r *Recorder) Named(name string) []Recorded {
	var out []Recorded
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
