// Package notify shows short user-facing notices for failures and
// confirmations, and reports shown errors to analytics.
package notify

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/nomdev/corbo/internal/analytics"
	"github.com/nomdev/corbo/internal/api"
)

// User-facing error texts.
const (
	TextTimeout = "Request timed out. Please check your connection and try again."
	TextGeneric = "Something went wrong!"
)

var (
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#FF005F")).
			Bold(true).
			Padding(0, 1)
	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#00D787")).
			Padding(0, 1)
)

// Notifier writes one-line toasts to a writer. Color is used only when the
// writer is a terminal.
type Notifier struct {
	mu     sync.Mutex
	out    io.Writer
	color  bool
	sink   analytics.Sink
	logger *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithAnalytics reports shown errors to sink.
func WithAnalytics(sink analytics.Sink) Option {
	return func(n *Notifier) { n.sink = sink }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// WithColor forces color on or off.
func WithColor(on bool) Option {
	return func(n *Notifier) { n.color = on }
}

// New creates a notifier writing to out.
func New(out io.Writer, opts ...Option) *Notifier {
	n := &Notifier{
		out:    out,
		color:  isTerminal(out),
		sink:   analytics.Nop{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// ErrorText returns the text shown for err.
func ErrorText(err error) string {
	if errors.Is(err, api.ErrRequestTimeout) {
		return TextTimeout
	}
	return TextGeneric
}

// Error shows the toast for err, logs it with context and tracks
// ErrorShown. It returns the text shown.
func (n *Notifier) Error(context string, err error) string {
	text := ErrorText(err)
	n.logger.Error(context, "error", err)

	props := analytics.Props{"errorText": text}
	if context != "" {
		props["context"] = context
	}
	if details := errorDetails(err); details != "" {
		props["errorDetails"] = details
	}
	n.sink.Track(analytics.EventErrorShown, props)

	n.write(errorStyle, "✗ "+text)
	return text
}

// Message shows a neutral confirmation toast.
func (n *Notifier) Message(text string) {
	n.write(messageStyle, text)
}

func (n *Notifier) write(style lipgloss.Style, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.color {
		text = style.Render(text)
	}
	fmt.Fprintln(n.out, text)
}

// errorDetails prefers the server's errorMessage over the error string.
func errorDetails(err error) string {
	if err == nil {
		return ""
	}
	if msg, ok := api.ServerMessage(err); ok {
		return msg
	}
	return err.Error()
}
