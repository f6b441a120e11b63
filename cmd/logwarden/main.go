package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/logwarden/logwarden/internal/api"
	"github.com/logwarden/logwarden/internal/api/health"
	"github.com/logwarden/logwarden/internal/bruteforce"
	"github.com/logwarden/logwarden/internal/evidence"
	"github.com/logwarden/logwarden/internal/metrics"
	"github.com/logwarden/logwarden/internal/notifier"
	"github.com/logwarden/logwarden/internal/rules"
	"github.com/logwarden/logwarden/internal/storage"
	"github.com/logwarden/logwarden/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "logwarden",
	Short: "LogWarden - Log ingestion incident webhook",
	Long: `LogWarden receives log messages over a webhook, matches them against
detection rules, records incidents, archives raw payloads as evidence,
and flags brute-force bursts of failed logins.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("logwarden %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	// Load configuration from file if provided
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.Address = httpAddr
	}
	cfg.Verbose = verbose

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Storage.SQLitePath)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Initialize incident storage
	store := storage.NewSQLiteStorage(cfg.Storage.SQLitePath)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	log.Printf("database initialized at %s", cfg.Storage.SQLitePath)

	// Detection rules: built-ins merged with the optional custom file
	ruleSet, err := rules.LoadSet(cfg.Rules.File)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	engine := rules.NewEngine(ruleSet)
	log.Printf("rule engine loaded with %d rules", len(ruleSet))

	// Failed-login attempt counter
	counter := bruteforce.NewCounter(store.Counters(), &bruteforce.Config{
		Threshold: cfg.BruteForce.Threshold,
		Window:    cfg.BruteForce.Window,
	})
	defer counter.Close()

	// Evidence archiver
	archiver, err := buildArchiver(cfg)
	if err != nil {
		return err
	}

	// Notification dispatcher
	dispatcher, err := buildDispatcher(cfg)
	if err != nil {
		return err
	}
	if dispatcher != nil {
		defer dispatcher.Close()
	}

	// Optional ClickHouse event archive
	var events *storage.EventBuffer
	var archive *storage.ClickHouseStorage
	if cfg.Storage.ClickHouse.Enabled {
		archive = storage.NewClickHouseStorage(&storage.ClickHouseConfig{
			Addresses:     cfg.Storage.ClickHouse.Addresses,
			Database:      cfg.Storage.ClickHouse.Database,
			Username:      cfg.Storage.ClickHouse.Username,
			Password:      cfg.Storage.ClickHouse.Password,
			Compression:   cfg.Storage.ClickHouse.Compression,
			RetentionDays: cfg.Storage.ClickHouse.RetentionDays,
		})
		if err := archive.Open(); err != nil {
			return fmt.Errorf("open event archive: %w", err)
		}
		defer archive.Close()

		if err := archive.Migrate(); err != nil {
			return fmt.Errorf("migrate event archive: %w", err)
		}

		events = storage.NewEventBuffer(archive.Events(), &storage.EventBufferConfig{})
		defer events.Close()

		log.Printf("event archive connected at %v", cfg.Storage.ClickHouse.Addresses)
	}

	// Build API server
	apiCfg := &api.Config{
		Address:            cfg.Server.Address,
		APIKey:             cfg.Server.APIKey,
		APIKeyHash:         cfg.Server.APIKeyHash,
		TLSEnabled:         cfg.Server.TLS.Enabled,
		TLSCertFile:        cfg.Server.TLS.CertFile,
		TLSKeyFile:         cfg.Server.TLS.KeyFile,
		MaxBodyBytes:       cfg.Ingest.MaxBody,
		ExcerptMax:         cfg.Ingest.ExcerptMax,
		StrictPersistence:  cfg.Ingest.StrictPersistence,
		RateLimitPerSource: cfg.Ingest.RateLimitPerSource,
		RateLimitBurst:     cfg.Ingest.RateLimitBurst,
		Verbose:            cfg.Verbose,
	}

	srv, err := api.New(apiCfg, api.Collaborators{
		Storage:    store,
		Engine:     engine,
		Counter:    counter,
		Archiver:   archiver,
		Dispatcher: dispatcher,
		Events:     events,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	srv.RegisterHealthChecker(health.NewDBChecker("sqlite", store.DB()))
	if archive != nil {
		srv.RegisterHealthChecker(health.NewPingChecker("clickhouse", archive))
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	// Rule file hot reload
	if cfg.Rules.Watch {
		watcher, err := rules.NewWatcher(engine, cfg.Rules.File)
		if err != nil {
			return fmt.Errorf("create rules watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("start rules watcher: %w", err)
		}
		defer watcher.Stop()
		log.Printf("watching rules file %s", cfg.Rules.File)
	}

	// Metrics listener
	if cfg.Metrics.Enabled {
		metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)
		metricsSrv := metrics.NewServer(cfg.Metrics.Address)
		go func() {
			if err := metricsSrv.Start(); err != nil {
				log.Printf("metrics server error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	// Run server
	log.Printf("starting logwarden %s", config.Version)
	log.Printf("HTTP listening on %s", cfg.Server.Address)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}

// buildArchiver constructs the evidence archiver, or nil when evidence
// archiving is disabled.
func buildArchiver(cfg *Config) (*evidence.Archiver, error) {
	if !cfg.Evidence.IsEnabled() {
		return nil, nil
	}

	blobs, err := evidence.NewFSStore(cfg.Evidence.Dir)
	if err != nil {
		return nil, fmt.Errorf("create evidence store: %w", err)
	}

	var signer *evidence.Signer
	if cfg.Evidence.URLMode == evidence.URLModeSigned {
		if cfg.Evidence.Secret == "" {
			return nil, fmt.Errorf("evidence.secret is required for signed locators (set LOGWARDEN_EVIDENCE_SECRET)")
		}
		signer = evidence.NewSigner([]byte(cfg.Evidence.Secret), cfg.Evidence.SignedTTL)
	}

	baseURL := cfg.Evidence.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost" + cfg.Server.Address
	}

	archiver, err := evidence.NewArchiver(blobs, signer, &evidence.Config{
		Bucket:  cfg.Evidence.Bucket,
		URLMode: cfg.Evidence.URLMode,
		BaseURL: baseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create archiver: %w", err)
	}

	log.Printf("evidence archiving to %s (%s locators)", cfg.Evidence.Dir, cfg.Evidence.URLMode)
	return archiver, nil
}

// buildDispatcher constructs the notification dispatcher with its
// configured sinks, or nil when notifications are disabled.
func buildDispatcher(cfg *Config) (*notifier.Dispatcher, error) {
	if !cfg.Notify.Enabled {
		return nil, nil
	}

	dispatcher := notifier.NewDispatcherWithRateLimit(notifier.RateLimitConfig{
		MaxPerWindow: cfg.Notify.Rate.MaxPerWindow,
		Window:       cfg.Notify.Rate.Window,
		Enabled:      true,
	})

	if cfg.Notify.Email.Host != "" {
		email, err := notifier.NewEmailNotifier(notifier.EmailConfig{
			Host:       cfg.Notify.Email.Host,
			Port:       cfg.Notify.Email.Port,
			Username:   cfg.Notify.Email.Username,
			Password:   cfg.Notify.Email.Password,
			From:       cfg.Notify.Email.From,
			Recipients: cfg.Notify.Email.Recipients,
		})
		if err != nil {
			return nil, fmt.Errorf("create email notifier: %w", err)
		}
		dispatcher.Register(email)
		log.Printf("email notifications to %d recipients via %s", len(cfg.Notify.Email.Recipients), cfg.Notify.Email.Host)
	}

	if cfg.Notify.Webhook.URL != "" {
		webhook, err := notifier.NewWebhookNotifier(notifier.WebhookConfig{
			URL: cfg.Notify.Webhook.URL,
		})
		if err != nil {
			return nil, fmt.Errorf("create webhook notifier: %w", err)
		}
		dispatcher.Register(webhook)
		log.Printf("webhook notifications enabled")
	}

	return dispatcher, nil
}
