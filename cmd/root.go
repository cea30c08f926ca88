package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pivotlens/pivotlens/internal/ai"
	cfgpkg "github.com/pivotlens/pivotlens/internal/config"
	"github.com/pivotlens/pivotlens/internal/session"
	"github.com/pivotlens/pivotlens/internal/storage"
)

var (
	// Global flags (wired to config/viper)
	cfgFile     string
	debug       bool
	sessionName string
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "pivotlens",
	Short: "PivotLens: pivot tables and natural-language analysis for CSV data",
	Long:  `PivotLens ingests CSV datasets, builds pivot tables over them, and answers natural-language questions about the results through an AI model via OpenRouter.`,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.pivotlens/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&sessionName, "session", "default", "named session to load and save")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	// .env first so PIVOTLENS_* vars from it are visible to viper
	_ = godotenv.Load()

	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
}

// newCompleter builds the LLM client from effective configuration.
func newCompleter() (ai.Completer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured (set PIVOTLENS_API_KEY or run 'pivotlens config set api_key <key>')")
	}
	opts := []ai.Option{
		ai.WithSampling(cfg.Temperature, cfg.MaxTokens),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPTimeoutSec > 0 {
		opts = append(opts, ai.WithHTTPTimeout(time.Duration(cfg.HTTPTimeoutSec)*time.Second))
	}
	if cfg.RetryMaxAttempts > 0 {
		opts = append(opts, ai.WithRetry(
			cfg.RetryMaxAttempts,
			time.Duration(cfg.RetryBaseDelayMs)*time.Millisecond,
			time.Duration(cfg.RetryMaxDelayMs)*time.Millisecond,
		))
	}
	return ai.NewClient(cfg.APIKey, cfg.DefaultModel, opts...), nil
}

// maybeCompleter returns a configured client, or nil when no API key is set.
// Commands that never reach the model still work without one.
func maybeCompleter() ai.Completer {
	c, err := newCompleter()
	if err != nil {
		return nil
	}
	return c
}

// openStore picks the snapshot backend from config.
func openStore() (storage.BlobStore, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config not loaded")
	}
	switch cfg.StorageBackend {
	case "", "fs":
		st, err := storage.NewFSStore(cfg.StorageDir)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	case "sqlite":
		st, err := storage.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage_backend %q (use fs or sqlite)", cfg.StorageBackend)
	}
}

// loadSession restores the named session, or starts a fresh one if it has
// never been saved. The LLM client may be nil for commands that never call
// the model.
func loadSession(llm ai.Completer) (*session.Session, storage.BlobStore, func(), error) {
	store, closeStore, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := session.Load(store, sessionName, llm)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			closeStore()
			return nil, nil, nil, err
		}
		s = session.New(llm)
		s.ID = sessionName
	}
	return s, store, closeStore, nil
}

// withSession runs fn against the named session and persists it afterward.
func withSession(llm ai.Completer, fn func(*session.Session) error) error {
	return withSessionStore(llm, func(s *session.Session, _ storage.BlobStore) error {
		return fn(s)
	})
}

// withSessionStore is withSession for commands that also write blobs of
// their own, like the raw upload kept at ingest.
func withSessionStore(llm ai.Completer, fn func(*session.Session, storage.BlobStore) error) error {
	s, store, closeStore, err := loadSession(llm)
	if err != nil {
		return err
	}
	defer closeStore()
	if err := fn(s, store); err != nil {
		return err
	}
	return s.Save(store)
}
