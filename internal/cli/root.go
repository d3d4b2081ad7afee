// Package cli provides the command-line interface for corbo.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nomdev/corbo/internal/analytics"
	"github.com/nomdev/corbo/internal/api"
	"github.com/nomdev/corbo/internal/auth"
	"github.com/nomdev/corbo/internal/config"
	"github.com/nomdev/corbo/internal/db"
	"github.com/nomdev/corbo/internal/history"
	"github.com/nomdev/corbo/internal/intent"
	"github.com/nomdev/corbo/internal/kv"
	"github.com/nomdev/corbo/internal/llm"
	"github.com/nomdev/corbo/internal/localdb"
	"github.com/nomdev/corbo/internal/metrics"
	"github.com/nomdev/corbo/internal/models"
	"github.com/nomdev/corbo/internal/notify"
	"github.com/nomdev/corbo/internal/service"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	showStats bool

	// Global state, set up by PersistentPreRunE
	cfg        config.Config
	logger     *slog.Logger
	closeLog   func() error
	localDB    *sql.DB
	surreal    *db.Client
	collector  *metrics.Collector
	provider   *auth.Provider
	baseClient *api.Client
	apiClient  *api.Client
	historySvc *history.Service
	sink       analytics.Sink
	notifier   *notify.Notifier

	// Lazy-initialized classifier
	classifier intent.Classifier
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "corbo",
	Short: "Journal your stories and ask questions about them",
	Long: `Corbo is a journaling assistant. Tell it stories, search them later,
and ask questions that are answered from what you told it.

Log in once with 'corbo login' and 'corbo verify'; the refresh token is
kept in the local data directory.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		return setup(cmd.Context())
	},
}

// setup loads the configuration and wires every collaborator the commands use.
func setup(ctx context.Context) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}

	logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	slog.SetDefault(logger)

	localDB, err = localdb.OpenInDir(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open local database: %w", err)
	}
	store, err := kv.NewSQLite(ctx, localDB, cfg.Suite)
	if err != nil {
		return err
	}

	collector = metrics.NewCollector()
	baseClient = api.New(cfg.BaseURL,
		api.WithRequestTimeout(cfg.RequestTimeout),
		api.WithRateLimit(cfg.RateLimit, 1),
		api.WithMetrics(collector),
		api.WithLogger(logger),
		api.WithStreamTransport(api.StreamTransport(cfg.StreamTransport)),
	)
	provider = auth.NewProvider(store, baseClient, auth.WithLogger(logger), auth.WithSuite(cfg.Suite))
	provider.OnLogout(func() {
		notifier.Message("Logged out. Run 'corbo login' to sign in again.")
	})
	apiClient = baseClient.WithTokens(provider)

	cache, err := newHistoryStore(ctx)
	if err != nil {
		return err
	}
	historySvc = history.NewService(cache, apiClient,
		history.WithLogger(logger),
		history.WithMetrics(collector),
	)

	sink = analytics.NewSlogSink(logger)
	notifier = notify.New(os.Stderr, notify.WithAnalytics(sink), notify.WithLogger(logger))
	return nil
}

func newHistoryStore(ctx context.Context) (history.Store, error) {
	if cfg.CacheBackend != config.CacheSurreal {
		return history.NewSQLiteStore(ctx, localDB)
	}

	var err error
	surreal, err = db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return history.NewSurrealStore(ctx, surreal)
}

func teardown(ctx context.Context) {
	if surreal != nil {
		if err := surreal.Close(context.WithoutCancel(ctx)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	if localDB != nil {
		if err := localDB.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close local database: %v\n", err)
		}
	}
	if closeLog != nil {
		_ = closeLog()
	}
}

// getClassifier returns the configured classifier, creating the LLM
// model on first use.
func getClassifier(ctx context.Context) (intent.Classifier, error) {
	if classifier != nil {
		return classifier, nil
	}
	if cfg.Classifier == config.ProviderKeyword {
		classifier = intent.NewKeyword()
		return classifier, nil
	}

	model, err := llm.NewModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}
	classifier = llm.NewClassifier(model, llm.WithMetrics(collector), llm.WithLogger(logger))
	return classifier, nil
}

// chatDeps collects the collaborators of a service.Chat. The classifier is
// only built when input will be routed.
func chatDeps(ctx context.Context, routed bool) (service.Deps, error) {
	deps := service.Deps{
		API:       apiClient,
		History:   historySvc,
		Notifier:  notifier,
		Analytics: sink,
		Logger:    logger,
	}
	if routed {
		cl, err := getClassifier(ctx)
		if err != nil {
			return service.Deps{}, err
		}
		deps.Classifier = cl
	}
	return deps, nil
}

// startChat opens session id, or starts a new conversation when id is 0.
func startChat(ctx context.Context, id int64, routed bool) (*service.Chat, error) {
	deps, err := chatDeps(ctx, routed)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return service.NewChat(deps), nil
	}
	return service.OpenChat(ctx, deps, models.Session{ID: &id})
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Statistics and cleanup run whether or not the command succeeded.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if showStats && collector != nil {
		printStats(os.Stderr, collector.Snapshot())
	}
	teardown(ctx)
	return err
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print request statistics when the command finishes")

	// Add subcommands
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(feedbackCmd)
}

// out is where command results are printed.
func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
