package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logwarden.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	configContent := `
server:
  address: ":9000"
  api_key_hash: "$2a$10$abcdefghijklmnopqrstuv"

ingest:
  excerpt_max: 200
  strict_persistence: true
  rate_limit_per_source: 5

bruteforce:
  threshold: 10
  window: 10m

storage:
  sqlite_path: "/var/lib/logwarden/incidents.db"

evidence:
  dir: "/var/lib/logwarden/evidence"
  url_mode: "public"
  base_url: "https://logwarden.example.com"

notify:
  enabled: true
  webhook:
    url: "https://hooks.example.com/warden"

rules:
  file: "/etc/logwarden/rules.yaml"

metrics:
  enabled: true
  address: ":9100"
`

	cfg, err := LoadConfig(writeConfig(t, configContent))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Address != ":9000" {
		t.Errorf("Server.Address = %v, want ':9000'", cfg.Server.Address)
	}
	if cfg.Server.APIKeyHash == "" {
		t.Error("Server.APIKeyHash should be set")
	}
	if cfg.Ingest.ExcerptMax != 200 {
		t.Errorf("Ingest.ExcerptMax = %d, want 200", cfg.Ingest.ExcerptMax)
	}
	if !cfg.Ingest.StrictPersistence {
		t.Error("Ingest.StrictPersistence = false, want true")
	}
	if cfg.Ingest.RateLimitPerSource != 5 {
		t.Errorf("Ingest.RateLimitPerSource = %v, want 5", cfg.Ingest.RateLimitPerSource)
	}
	if cfg.BruteForce.Threshold != 10 {
		t.Errorf("BruteForce.Threshold = %d, want 10", cfg.BruteForce.Threshold)
	}
	if cfg.BruteForce.Window != 10*time.Minute {
		t.Errorf("BruteForce.Window = %v, want 10m", cfg.BruteForce.Window)
	}
	if cfg.Storage.SQLitePath != "/var/lib/logwarden/incidents.db" {
		t.Errorf("Storage.SQLitePath = %v", cfg.Storage.SQLitePath)
	}
	if cfg.Evidence.URLMode != "public" {
		t.Errorf("Evidence.URLMode = %v, want 'public'", cfg.Evidence.URLMode)
	}
	if cfg.Evidence.BaseURL != "https://logwarden.example.com" {
		t.Errorf("Evidence.BaseURL = %v", cfg.Evidence.BaseURL)
	}
	if !cfg.Notify.Enabled {
		t.Error("Notify.Enabled = false, want true")
	}
	if cfg.Notify.Webhook.URL != "https://hooks.example.com/warden" {
		t.Errorf("Notify.Webhook.URL = %v", cfg.Notify.Webhook.URL)
	}
	if cfg.Rules.File != "/etc/logwarden/rules.yaml" {
		t.Errorf("Rules.File = %v", cfg.Rules.File)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if cfg.Metrics.Address != ":9100" {
		t.Errorf("Metrics.Address = %v, want ':9100'", cfg.Metrics.Address)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	// Minimal config; everything else comes from defaults
	cfg, err := LoadConfig(writeConfig(t, "server:\n  address: \":8080\"\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Ingest.MaxBody != 1<<20 {
		t.Errorf("Ingest.MaxBody = %d, want 1 MiB (default)", cfg.Ingest.MaxBody)
	}
	if cfg.Ingest.ExcerptMax != 800 {
		t.Errorf("Ingest.ExcerptMax = %d, want 800 (default)", cfg.Ingest.ExcerptMax)
	}
	if cfg.BruteForce.Threshold != 3 {
		t.Errorf("BruteForce.Threshold = %d, want 3 (default)", cfg.BruteForce.Threshold)
	}
	if cfg.BruteForce.Window != 5*time.Minute {
		t.Errorf("BruteForce.Window = %v, want 5m (default)", cfg.BruteForce.Window)
	}
	if cfg.Storage.SQLitePath != "logwarden.db" {
		t.Errorf("Storage.SQLitePath = %v, want 'logwarden.db' (default)", cfg.Storage.SQLitePath)
	}
	if !cfg.Evidence.IsEnabled() {
		t.Error("Evidence should be enabled by default")
	}
	if cfg.Evidence.URLMode != "signed" {
		t.Errorf("Evidence.URLMode = %v, want 'signed' (default)", cfg.Evidence.URLMode)
	}
	if cfg.Evidence.SignedTTL != 15*time.Minute {
		t.Errorf("Evidence.SignedTTL = %v, want 15m (default)", cfg.Evidence.SignedTTL)
	}
	if cfg.Evidence.Bucket != "evidence" {
		t.Errorf("Evidence.Bucket = %v, want 'evidence' (default)", cfg.Evidence.Bucket)
	}
	if cfg.Notify.Rate.MaxPerWindow != 10 {
		t.Errorf("Notify.Rate.MaxPerWindow = %d, want 10 (default)", cfg.Notify.Rate.MaxPerWindow)
	}
	if cfg.Notify.Rate.Window != time.Minute {
		t.Errorf("Notify.Rate.Window = %v, want 1m (default)", cfg.Notify.Rate.Window)
	}
	if cfg.Metrics.Address != ":9090" {
		t.Errorf("Metrics.Address = %v, want ':9090' (default)", cfg.Metrics.Address)
	}
}

func TestEvidenceDisabled(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "evidence:\n  enabled: false\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Evidence.IsEnabled() {
		t.Error("Evidence.IsEnabled() = true with enabled: false")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name:    "tls without cert",
			config:  "server:\n  tls:\n    enabled: true",
			wantErr: "server.tls.cert_file is required",
		},
		{
			name:    "tls without key",
			config:  "server:\n  tls:\n    enabled: true\n    cert_file: /tmp/server.crt",
			wantErr: "server.tls.key_file is required",
		},
		{
			name:    "negative rate limit",
			config:  "ingest:\n  rate_limit_per_source: -1",
			wantErr: "ingest.rate_limit_per_source must not be negative",
		},
		{
			name:    "clickhouse without addresses",
			config:  "storage:\n  clickhouse:\n    enabled: true\n    database: warden",
			wantErr: "storage.clickhouse.addresses is required",
		},
		{
			name:    "clickhouse without database",
			config:  "storage:\n  clickhouse:\n    enabled: true\n    addresses: [\"localhost:9000\"]",
			wantErr: "storage.clickhouse.database is required",
		},
		{
			name:    "bad evidence url mode",
			config:  "evidence:\n  url_mode: ftp",
			wantErr: "evidence.url_mode",
		},
		{
			name:    "notify without sink",
			config:  "notify:\n  enabled: true",
			wantErr: "notify requires an email host or a webhook url",
		},
		{
			name:    "watch without rules file",
			config:  "rules:\n  watch: true",
			wantErr: "rules.watch requires rules.file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.config))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOGWARDEN_API_KEY", "env-key")
	t.Setenv("LOGWARDEN_EVIDENCE_SECRET", "env-secret")
	t.Setenv("LOGWARDEN_SMTP_PASSWORD", "env-smtp")
	t.Setenv("LOGWARDEN_CLICKHOUSE_PASSWORD", "env-ch")

	configContent := `
server:
  api_key: "file-key"

evidence:
  secret: "file-secret"
`

	cfg, err := LoadConfig(writeConfig(t, configContent))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.APIKey != "env-key" {
		t.Errorf("Server.APIKey = %v, want env override", cfg.Server.APIKey)
	}
	if cfg.Evidence.Secret != "env-secret" {
		t.Errorf("Evidence.Secret = %v, want env override", cfg.Evidence.Secret)
	}
	if cfg.Notify.Email.Password != "env-smtp" {
		t.Errorf("Notify.Email.Password = %v, want env override", cfg.Notify.Email.Password)
	}
	if cfg.Storage.ClickHouse.Password != "env-ch" {
		t.Errorf("Storage.ClickHouse.Password = %v, want env override", cfg.Storage.ClickHouse.Password)
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}
