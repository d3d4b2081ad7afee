// Package config loads runtime settings from the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Classifier providers.
const (
	ProviderKeyword   = "keyword"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

// History cache backends.
const (
	CacheSQLite  = "sqlite"
	CacheSurreal = "surreal"
)

// ErrInvalidValue indicates a setting could not be parsed or is not one of
// its allowed values.
var ErrInvalidValue = errors.New("invalid config value")

// Config holds all configuration values.
type Config struct {
	// Backend
	BaseURL         string
	RequestTimeout  time.Duration
	RateLimit       float64
	StreamTransport string

	// Local storage
	DataDir      string
	Suite        string
	CacheBackend string

	// SurrealDB connection, used when CacheBackend is "surreal"
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Intent classification
	Classifier      string
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads CORBO_CONFIG, if set, and then the environment. Environment
// variables win over the file.
func Load() (Config, error) {
	return LoadWithFile(os.Getenv("CORBO_CONFIG"))
}

// LoadWithFile is Load with an explicit file path. An empty path skips the
// file.
func LoadWithFile(path string) (Config, error) {
	file := map[string]string{}
	if path != "" {
		var err error
		if file, err = readFile(path); err != nil {
			return Config{}, err
		}
	}
	get := func(key, defaultVal string) string {
		if v, ok := file[key]; ok && v != "" {
			defaultVal = v
		}
		return getEnv(key, defaultVal)
	}

	cfg := Config{
		BaseURL:         strings.TrimSuffix(get("CORBO_BASE_URL", "https://d2j8ymo8s5yyn1.cloudfront.net"), "/"),
		StreamTransport: get("CORBO_STREAM_TRANSPORT", "http"),

		DataDir:      get("CORBO_DATA_DIR", defaultDataDir()),
		Suite:        get("CORBO_SUITE", "group.settings.com.nomdevelopment.Corbo"),
		CacheBackend: get("CORBO_CACHE_BACKEND", CacheSQLite),

		SurrealDBURL:       get("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: get("SURREALDB_NAMESPACE", "corbo"),
		SurrealDBDatabase:  get("SURREALDB_DATABASE", "history"),
		SurrealDBUser:      get("SURREALDB_USER", "root"),
		SurrealDBPass:      get("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: get("SURREALDB_AUTH_LEVEL", "root"),

		Classifier:      get("CORBO_CLASSIFIER", ProviderKeyword),
		LLMModel:        get("CORBO_LLM_MODEL", ""),
		OllamaHost:      get("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    get("OPENAI_API_KEY", ""),
		AnthropicAPIKey: get("ANTHROPIC_API_KEY", ""),
		AWSRegion:       get("AWS_REGION", ""),

		LogFile:  get("CORBO_LOG_FILE", ""),
		LogLevel: parseLogLevel(get("CORBO_LOG_LEVEL", "WARN")),
	}

	var err error
	if cfg.RequestTimeout, err = time.ParseDuration(get("CORBO_REQUEST_TIMEOUT", "20s")); err != nil || cfg.RequestTimeout <= 0 {
		return Config{}, fmt.Errorf("%w: CORBO_REQUEST_TIMEOUT: %q", ErrInvalidValue, get("CORBO_REQUEST_TIMEOUT", ""))
	}
	if cfg.RateLimit, err = strconv.ParseFloat(get("CORBO_RATE_LIMIT", "0"), 64); err != nil || cfg.RateLimit < 0 {
		return Config{}, fmt.Errorf("%w: CORBO_RATE_LIMIT: %q", ErrInvalidValue, get("CORBO_RATE_LIMIT", ""))
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	checks := []struct {
		key     string
		value   string
		allowed []string
	}{
		{"CORBO_STREAM_TRANSPORT", c.StreamTransport, []string{"http", "websocket"}},
		{"CORBO_CACHE_BACKEND", c.CacheBackend, []string{CacheSQLite, CacheSurreal}},
		{"CORBO_CLASSIFIER", c.Classifier, []string{ProviderKeyword, ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderBedrock}},
	}
	for _, check := range checks {
		if !contains(check.allowed, check.value) {
			return fmt.Errorf("%w: %s: %q (want one of %s)",
				ErrInvalidValue, check.key, check.value, strings.Join(check.allowed, ", "))
		}
	}
	return nil
}

// fileConfig mirrors the YAML layout. Keys map onto the environment
// variable names they stand in for.
type fileConfig struct {
	BaseURL         string `yaml:"base_url"`
	RequestTimeout  string `yaml:"request_timeout"`
	RateLimit       string `yaml:"rate_limit"`
	StreamTransport string `yaml:"stream_transport"`
	DataDir         string `yaml:"data_dir"`
	Suite           string `yaml:"suite"`
	CacheBackend    string `yaml:"cache_backend"`
	Classifier      string `yaml:"classifier"`
	LLMModel        string `yaml:"llm_model"`
	OllamaHost      string `yaml:"ollama_host"`
	AWSRegion       string `yaml:"aws_region"`
	LogFile         string `yaml:"log_file"`
	LogLevel        string `yaml:"log_level"`

	SurrealDB struct {
		URL       string `yaml:"url"`
		Namespace string `yaml:"namespace"`
		Database  string `yaml:"database"`
		User      string `yaml:"user"`
		Pass      string `yaml:"pass"`
		AuthLevel string `yaml:"auth_level"`
	} `yaml:"surrealdb"`
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return map[string]string{
		"CORBO_BASE_URL":         fc.BaseURL,
		"CORBO_REQUEST_TIMEOUT":  fc.RequestTimeout,
		"CORBO_RATE_LIMIT":       fc.RateLimit,
		"CORBO_STREAM_TRANSPORT": fc.StreamTransport,
		"CORBO_DATA_DIR":         fc.DataDir,
		"CORBO_SUITE":            fc.Suite,
		"CORBO_CACHE_BACKEND":    fc.CacheBackend,
		"CORBO_CLASSIFIER":       fc.Classifier,
		"CORBO_LLM_MODEL":        fc.LLMModel,
		"OLLAMA_HOST":            fc.OllamaHost,
		"AWS_REGION":             fc.AWSRegion,
		"CORBO_LOG_FILE":         fc.LogFile,
		"CORBO_LOG_LEVEL":        fc.LogLevel,
		"SURREALDB_URL":          fc.SurrealDB.URL,
		"SURREALDB_NAMESPACE":    fc.SurrealDB.Namespace,
		"SURREALDB_DATABASE":     fc.SurrealDB.Database,
		"SURREALDB_USER":         fc.SurrealDB.User,
		"SURREALDB_PASS":         fc.SurrealDB.Pass,
		"SURREALDB_AUTH_LEVEL":   fc.SurrealDB.AuthLevel,
	}, nil
}

func defaultDataDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".corbo"
	}
	return filepath.Join(dir, "corbo")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
