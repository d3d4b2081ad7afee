package notify

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomdev/corbo/internal/analytics"
	"github.com/nomdev/corbo/internal/api"
	"github.com/nomdev/corbo/internal/models"
)

func newTestNotifier() (*Notifier, *bytes.Buffer, *analytics.Recorder) {
	var out bytes.Buffer
	rec := &analytics.Recorder{}
	n := New(&out,
		WithAnalytics(rec),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return n, &out, rec
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", api.ErrRequestTimeout, TextTimeout},
		{"wrapped timeout", fmt.Errorf("call /x: %w", api.ErrRequestTimeout), TextTimeout},
		{"status", api.ErrUnsuccessfulStatusCode, TextGeneric},
		{"other", errors.New("boom"), TextGeneric},
		{"nil", nil, TextGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorText(tt.err))
		})
	}
}

func TestErrorTracksServerMessage(t *testing.T) {
	n, out, rec := newTestNotifier()
	err := fmt.Errorf("ask: %w", &api.ErrorMessage{Message: models.Ptr("session not found"), StatusCode: 404})

	shown := n.Error("askWithStream", err)

	assert.Equal(t, TextGeneric, shown)
	assert.Equal(t, "✗ "+TextGeneric+"\n", out.String(), "no color when not a terminal")

	events := rec.Named(analytics.EventErrorShown)
	require.Len(t, events, 1)
	assert.Equal(t, analytics.Props{
		"errorText":    TextGeneric,
		"context":      "askWithStream",
		"errorDetails": "session not found",
	}, events[0].Props)
}

func TestErrorDetailsFallBackToErrorString(t *testing.T) {
	n, _, rec := newTestNotifier()

	n.Error("", api.ErrRequestTimeout)

	props := rec.Events()[0].Props
	assert.Equal(t, TextTimeout, props["errorText"])
	assert.Equal(t, "request timed out", props["errorDetails"])
	_, hasContext := props["context"]
	assert.False(t, hasContext)
}

func TestColorOnlyWhenForced(t *testing.T) {
	var out bytes.Buffer
	n := New(&out, WithColor(true))
	n.Message("saved")

	assert.Contains(t, out.String(), "saved")

	var plain bytes.Buffer
	New(&plain).Message("saved")
	assert.Equal(t, "saved\n", plain.String())
}
