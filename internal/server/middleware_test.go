package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomdev/corbo/internal/models"
)

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		level   string
		msg     string
	}{
		{
			name:    "ok",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
			level:   "DEBUG",
			msg:     "request completed",
		},
		{
			name: "error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusNotFound, "session not found")
			},
			level: "ERROR",
			msg:   "request failed",
		},
		{
			name: "slow",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(slowRequestThreshold + 20*time.Millisecond)
			},
			level: "WARN",
			msg:   "slow request",
		},
		{
			name: "slow stream",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NewResponseController(w).Flush()
				time.Sleep(slowRequestThreshold + 20*time.Millisecond)
			},
			level: "DEBUG",
			msg:   "request completed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
			h := LoggingMiddleware(logger)(tt.handler)

			req := httptest.NewRequest(http.MethodPost, "/api/core/listSessions", nil)
			h.ServeHTTP(httptest.NewRecorder(), req)

			out := logs.String()
			assert.Contains(t, out, "level="+tt.level)
			assert.Contains(t, out, tt.msg)
			assert.Contains(t, out, "path=/api/core/listSessions")
		})
	}
}

func TestLoggingMiddlewareTruncatesBody(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var seen string
	h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r.Body)
		seen = buf.String()
	}))

	payload := `{"input":"` + strings.Repeat("x", 500) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/core/createStory", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, payload, seen, "handler still sees the full body")
	require.Contains(t, logs.String(), "body=")
	assert.Contains(t, logs.String(), "...")
	assert.NotContains(t, logs.String(), strings.Repeat("x", 300))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{in: "short", maxLen: 10, want: "short"},
		{in: "exactly10!", maxLen: 10, want: "exactly10!"},
		{in: "this is too long", maxLen: 10, want: "this is..."},
		{in: "abc", maxLen: 2, want: "ab"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, tt.maxLen))
	}
}

func TestTitleFrom(t *testing.T) {
	assert.Equal(t, "hello world", titleFrom("  hello \n world "))
	assert.Equal(t, "", titleFrom("   "))
	long := strings.Repeat("é", 50)
	assert.Equal(t, strings.Repeat("é", 37)+"...", titleFrom(long))
}

func TestMatchStories(t *testing.T) {
	stories := []models.Story{
		{ID: 1, Content: "Lunch with Ana"},
		{ID: 2, Content: "Ana moved to Lisbon"},
		{ID: 3, Content: "Bought a bike"},
	}

	got := matchStories(stories, "what about Ana?")
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID, "newest first")
	assert.Equal(t, int64(1), got[1].ID)

	assert.Empty(t, matchStories(stories, "a an to"), "short words are ignored")
}
