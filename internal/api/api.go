// Package api provides the HTTP API server.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/logwarden/logwarden/internal/api/health"
	"github.com/logwarden/logwarden/internal/api/middleware"
	"github.com/logwarden/logwarden/internal/bruteforce"
	"github.com/logwarden/logwarden/internal/evidence"
	"github.com/logwarden/logwarden/internal/notifier"
	"github.com/logwarden/logwarden/internal/rules"
	"github.com/logwarden/logwarden/internal/security"
	"github.com/logwarden/logwarden/internal/storage"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address string

	// APIKey and APIKeyHash configure the x-api-key check. The bcrypt
	// hash wins when both are set; with neither, requests pass
	// unauthenticated.
	APIKey     string
	APIKeyHash string

	TLSEnabled  bool
	TLSCertFile string
	TLSKeyFile  string

	// Ingest pipeline knobs.
	MaxBodyBytes      int64
	ExcerptMax        int
	StrictPersistence bool

	// RateLimitPerSource caps ingest calls per second per client
	// source; zero disables the limiter.
	RateLimitPerSource float64
	RateLimitBurst     int

	Verbose bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 1 << 20 // 1 MiB
	}
	if c.ExcerptMax == 0 {
		c.ExcerptMax = 800
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = 10
	}
}

// Collaborators bundles the subsystems the API serves. Archiver,
// Dispatcher and Events may be nil when the corresponding feature is
// disabled.
type Collaborators struct {
	Storage    storage.Storage
	Engine     *rules.Engine
	Counter    *bruteforce.Counter
	Archiver   *evidence.Archiver
	Dispatcher *notifier.Dispatcher
	Events     *storage.EventBuffer
}

// Server is the HTTP API server.
type Server struct {
	config        *Config
	storage       storage.Storage
	engine        *rules.Engine
	counter       *bruteforce.Counter
	archiver      *evidence.Archiver
	dispatcher    *notifier.Dispatcher
	events        *storage.EventBuffer
	verifier      *security.APIKeyVerifier
	limiter       *middleware.SourceRateLimiter
	server        *http.Server
	healthHandler *health.Handler
}

// New creates a new API server.
func New(cfg *Config, c Collaborators) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if c.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if c.Engine == nil {
		return nil, fmt.Errorf("rule engine is required")
	}

	cfg.SetDefaults()

	verifier, err := security.NewAPIKeyVerifier(cfg.APIKey, cfg.APIKeyHash)
	if err != nil {
		return nil, fmt.Errorf("api key config: %w", err)
	}

	s := &Server{
		config:        cfg,
		storage:       c.Storage,
		engine:        c.Engine,
		counter:       c.Counter,
		archiver:      c.Archiver,
		dispatcher:    c.Dispatcher,
		events:        c.Events,
		verifier:      verifier,
		limiter:       middleware.NewSourceRateLimiter(cfg.RateLimitPerSource, cfg.RateLimitBurst),
		healthHandler: health.NewHandler(),
	}

	router := s.setupRouter()

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if cfg.TLSEnabled {
		s.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	return s, nil
}

// Run starts the HTTP server and blocks until context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		log.Printf("HTTP API listening on %s", s.config.Address)
		var err error
		if s.config.TLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down HTTP API server...")
		if s.limiter != nil {
			s.limiter.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	if s.healthHandler != nil {
		s.healthHandler.RegisterChecker(c)
	}
}
