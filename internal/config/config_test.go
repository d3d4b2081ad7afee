package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment does
// not leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CORBO_CONFIG", "CORBO_BASE_URL", "CORBO_REQUEST_TIMEOUT", "CORBO_RATE_LIMIT",
		"CORBO_STREAM_TRANSPORT", "CORBO_DATA_DIR", "CORBO_SUITE", "CORBO_CACHE_BACKEND",
		"CORBO_CLASSIFIER", "CORBO_LLM_MODEL", "CORBO_LOG_FILE", "CORBO_LOG_LEVEL",
		"SURREALDB_URL", "SURREALDB_NAMESPACE", "SURREALDB_DATABASE", "SURREALDB_USER",
		"SURREALDB_PASS", "SURREALDB_AUTH_LEVEL", "OLLAMA_HOST", "OPENAI_API_KEY",
		"ANTHROPIC_API_KEY", "AWS_REGION",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://d2j8ymo8s5yyn1.cloudfront.net", cfg.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.RequestTimeout)
	assert.Zero(t, cfg.RateLimit)
	assert.Equal(t, "http", cfg.StreamTransport)
	assert.Equal(t, "group.settings.com.nomdevelopment.Corbo", cfg.Suite)
	assert.Equal(t, CacheSQLite, cfg.CacheBackend)
	assert.Equal(t, ProviderKeyword, cfg.Classifier)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, "corbo", filepath.Base(cfg.DataDir))
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CORBO_BASE_URL", "http://localhost:8080/")
	t.Setenv("CORBO_REQUEST_TIMEOUT", "5s")
	t.Setenv("CORBO_RATE_LIMIT", "2.5")
	t.Setenv("CORBO_STREAM_TRANSPORT", "websocket")
	t.Setenv("CORBO_CLASSIFIER", "ollama")
	t.Setenv("CORBO_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.InDelta(t, 2.5, cfg.RateLimit, 1e-9)
	assert.Equal(t, "websocket", cfg.StreamTransport)
	assert.Equal(t, ProviderOllama, cfg.Classifier)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"CORBO_REQUEST_TIMEOUT", "soon"},
		{"CORBO_REQUEST_TIMEOUT", "-1s"},
		{"CORBO_RATE_LIMIT", "fast"},
		{"CORBO_STREAM_TRANSPORT", "carrier-pigeon"},
		{"CORBO_CACHE_BACKEND", "redis"},
		{"CORBO_CLASSIFIER", "magic"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.ErrorIs(t, err, ErrInvalidValue)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadWithFileEnvWins(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "corbo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: http://from-file
request_timeout: 3s
cache_backend: surreal
surrealdb:
  url: ws://db:8000/rpc
  namespace: shared
`), 0o600))
	t.Setenv("CORBO_CONFIG", path)
	t.Setenv("CORBO_BASE_URL", "http://from-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://from-env", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, CacheSurreal, cfg.CacheBackend)
	assert.Equal(t, "ws://db:8000/rpc", cfg.SurrealDBURL)
	assert.Equal(t, "shared", cfg.SurrealDBNamespace)
	assert.Equal(t, "history", cfg.SurrealDBDatabase, "unset file keys keep defaults")
}

func TestLoadWithFileErrors(t *testing.T) {
	clearEnv(t)

	_, err := LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: [unclosed"), 0o600))
	_, err = LoadWithFile(path)
	assert.ErrorContains(t, err, "parse config file")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"Warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelWarn},
		{"verbose", slog.LevelWarn},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelWarn)

	logger.Debug("quiet detail")
	logger.Warn("loud problem", "session_id", 7)

	assert.NotContains(t, stderr.String(), "quiet detail")
	assert.Contains(t, stderr.String(), "loud problem")
	assert.Contains(t, file.String(), `"msg":"quiet detail"`)
	assert.True(t, strings.Contains(file.String(), `"session_id":7`))
}

func TestSetupLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corbo.log")
	logger, cleanup := SetupLogger(path, slog.LevelError)
	logger.Info("to file only")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file only")
}
