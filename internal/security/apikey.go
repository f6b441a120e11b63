package security

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinAPIKeyLength is the minimum accepted API key length when hashing.
	MinAPIKeyLength = 16
	// MaxAPIKeyLength is the bcrypt input limit in bytes.
	MaxAPIKeyLength = 72
)

// HashAPIKey returns a bcrypt hash of the key, suitable for storing in
// config files instead of the plain key.
func HashAPIKey(key string) (string, error) {
	if len(key) < MinAPIKeyLength {
		return "", fmt.Errorf("api key too short: got %d chars, want at least %d", len(key), MinAPIKeyLength)
	}
	if len(key) > MaxAPIKeyLength {
		return "", fmt.Errorf("api key too long: got %d bytes, max %d", len(key), MaxAPIKeyLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}

	return string(hash), nil
}

// APIKeyVerifier checks presented API keys against a configured plain
// key or bcrypt hash. When both are configured the hash takes
// precedence.
type APIKeyVerifier struct {
	plain []byte
	hash  []byte
}

// NewAPIKeyVerifier builds a verifier from config values. Either value
// may be empty; an empty verifier rejects everything.
func NewAPIKeyVerifier(plain, hash string) (*APIKeyVerifier, error) {
	v := &APIKeyVerifier{}

	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid api key hash: %w", err)
		}
		v.hash = []byte(hash)
	}

	if plain != "" {
		v.plain = []byte(plain)
	}

	return v, nil
}

// Enabled returns true if at least one credential is configured.
func (v *APIKeyVerifier) Enabled() bool {
	return len(v.hash) > 0 || len(v.plain) > 0
}

// Verify reports whether the presented key matches the configured
// credential. Plain keys are compared in constant time.
func (v *APIKeyVerifier) Verify(presented string) bool {
	if presented == "" {
		return false
	}

	if len(v.hash) > 0 {
		return bcrypt.CompareHashAndPassword(v.hash, []byte(presented)) == nil
	}

	if len(v.plain) > 0 {
		return subtle.ConstantTimeCompare(v.plain, []byte(presented)) == 1
	}

	return false
}
