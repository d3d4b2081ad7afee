// Package db stores conversation transcripts in SurrealDB so several
// devices can share one history cache.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// WebSocket upgrades need HTTP/1.1; keep TLS from negotiating h2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Config holds SurrealDB connection configuration.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"

	// DialTimeout bounds each connection attempt. Zero means five seconds.
	DialTimeout time.Duration
	// MaxRetries bounds reconnect attempts after the connection drops.
	// Zero means ten.
	MaxRetries int
}

func (c Config) withDefaults() Config {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 10
	}
	return c
}

// credentials returns the sign-in payload for the configured auth level.
// Database users are scoped to their namespace and database.
func (c Config) credentials() surrealdb.Auth {
	creds := surrealdb.Auth{Username: c.Username, Password: c.Password}
	if c.AuthLevel == "database" {
		creds.Namespace = c.Namespace
		creds.Database = c.Database
	}
	return creds
}

// Client is a transcript store backed by a reconnecting SurrealDB socket.
type Client struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	cfg    Config
	logger logger.Logger
}

// NewClient connects, signs in and selects the namespace and database.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	sdkLogger := logger.New(log.Handler())

	conn := reconnecting(cfg, sdkLogger)
	sdkLogger.Debug("dialing transcript store", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.URL, err)
	}

	sdb, err := open(ctx, conn, cfg)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}

	sdkLogger.Info("transcript store ready", "namespace", cfg.Namespace, "database", cfg.Database)
	return &Client{conn: conn, db: sdb, cfg: cfg, logger: sdkLogger}, nil
}

// reconnecting builds a socket that redials with exponential backoff.
func reconnecting(cfg Config, sdkLogger logger.Logger) *rews.Connection[*gorillaws.Connection] {
	codec := surrealcbor.New()
	// gorillaws appends /rpc itself.
	base := strings.TrimSuffix(cfg.URL, "/rpc")

	dial := func(context.Context) (*gorillaws.Connection, error) {
		return gorillaws.New(&connection.Config{
			BaseURL:     base,
			Marshaler:   codec,
			Unmarshaler: codec,
			Logger:      sdkLogger,
		}), nil
	}
	conn := rews.New(dial, cfg.DialTimeout, codec, sdkLogger)

	backoff := rews.NewExponentialBackoffRetryer()
	backoff.InitialDelay = time.Second
	backoff.MaxDelay = 30 * time.Second
	backoff.Multiplier = 2
	backoff.MaxRetries = cfg.MaxRetries
	conn.Retryer = backoff
	return conn
}

// open signs in on conn and selects the configured namespace and database.
func open(ctx context.Context, conn *rews.Connection[*gorillaws.Connection], cfg Config) (*surrealdb.DB, error) {
	sdb, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if _, err := sdb.SignIn(ctx, cfg.credentials()); err != nil {
		return nil, fmt.Errorf("sign in as %s: %w", cfg.Username, err)
	}
	if err := sdb.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("select %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}
	return sdb, nil
}

// Close closes the connection.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Debug("closing transcript store")
	return c.conn.Close(ctx)
}

// InitSchema defines the transcript table. It is idempotent.
func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, c.db, SchemaSQL, nil); err != nil {
		return fmt.Errorf("define transcript table: %w", wrapQueryError(err))
	}
	return nil
}

// WipeData deletes every transcript and keeps the schema. Tests use it
// between cases.
func (c *Client) WipeData(ctx context.Context) error {
	c.logger.Warn("deleting every stored transcript")
	if _, err := surrealdb.Query[any](ctx, c.db, "DELETE transcript", nil); err != nil {
		return fmt.Errorf("wipe transcripts: %w", wrapQueryError(err))
	}
	return nil
}
