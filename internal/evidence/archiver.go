// Package evidence persists raw ingest payloads and mints download
// locators for them.
package evidence

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// URL modes for evidence locators.
const (
	URLModeSigned = "signed"
	URLModePublic = "public"
)

// DefaultBucket is the bucket evidence blobs are stored under.
const DefaultBucket = "evidence"

// Config holds Archiver configuration.
type Config struct {
	// Bucket is the blob store bucket. Defaults to "evidence".
	Bucket string

	// URLMode selects the locator strategy: "signed" or "public".
	URLMode string

	// BaseURL is the externally reachable server base URL used in
	// locators, e.g. "https://logwarden.example.com".
	BaseURL string
}

// Archiver stores raw payloads for incidents. Storing is best-effort:
// a failure is logged and reported to the caller, never escalated.
type Archiver struct {
	store   BlobStore
	signer  *Signer
	bucket  string
	urlMode string
	baseURL string
}

// NewArchiver creates an archiver. The signer may be nil in public
// mode.
func NewArchiver(store BlobStore, signer *Signer, config *Config) (*Archiver, error) {
	if config == nil {
		config = &Config{}
	}
	// Apply defaults
	if config.Bucket == "" {
		config.Bucket = DefaultBucket
	}
	if config.URLMode == "" {
		config.URLMode = URLModeSigned
	}

	switch config.URLMode {
	case URLModeSigned:
		if signer == nil {
			return nil, fmt.Errorf("signed url mode requires a signer")
		}
	case URLModePublic:
	default:
		return nil, fmt.Errorf("invalid url mode %q", config.URLMode)
	}

	return &Archiver{
		store:   store,
		signer:  signer,
		bucket:  config.Bucket,
		urlMode: config.URLMode,
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
	}, nil
}

// Store writes the raw payload for an incident and returns its locator.
// Any failure is logged and yields ("", false); the incident proceeds
// without evidence.
func (a *Archiver) Store(ctx context.Context, incidentID string, raw []byte) (string, bool) {
	key := fmt.Sprintf("%s-%d.log", incidentID, time.Now().UnixNano())

	if err := a.store.Put(ctx, a.bucket, key, raw, "text/plain; charset=utf-8"); err != nil {
		log.Printf("evidence store failed for incident %s: %v", incidentID, err)
		return "", false
	}

	locator, err := a.Locator(key)
	if err != nil {
		log.Printf("evidence locator failed for incident %s: %v", incidentID, err)
		return "", false
	}
	return locator, true
}

// Locator builds the download locator for a stored key.
func (a *Archiver) Locator(key string) (string, error) {
	switch a.urlMode {
	case URLModeSigned:
		token, err := a.signer.Sign(key)
		if err != nil {
			return "", fmt.Errorf("sign key: %w", err)
		}
		return fmt.Sprintf("%s/api/v1/evidence/%s?token=%s", a.baseURL, key, token), nil
	case URLModePublic:
		return fmt.Sprintf("%s/evidence/%s", a.baseURL, key), nil
	}
	return "", fmt.Errorf("invalid url mode %q", a.urlMode)
}

// Fetch reads a stored payload back for download.
func (a *Archiver) Fetch(ctx context.Context, key string) ([]byte, error) {
	return a.store.Get(ctx, a.bucket, key)
}

// Verify validates a signed download token and returns the blob key.
func (a *Archiver) Verify(token string) (string, error) {
	if a.signer == nil {
		return "", fmt.Errorf("no signer configured")
	}
	return a.signer.Verify(token)
}

// URLMode returns the configured locator strategy.
func (a *Archiver) URLMode() string {
	return a.urlMode
}
