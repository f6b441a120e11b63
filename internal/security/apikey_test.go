package security

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAPIKey(t *testing.T) {
	key := "test-api-key-1234567890"

	hash, err := HashAPIKey(key)
	if err != nil {
		t.Fatalf("HashAPIKey failed: %v", err)
	}

	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("hash should be bcrypt format, got %q", hash)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		t.Errorf("hash should verify against original key: %v", err)
	}
}

func TestHashAPIKey_TooShort(t *testing.T) {
	_, err := HashAPIKey("short")
	if err == nil {
		t.Error("expected error for short key")
	}
}

func TestHashAPIKey_TooLong(t *testing.T) {
	_, err := HashAPIKey(strings.Repeat("a", MaxAPIKeyLength+1))
	if err == nil {
		t.Error("expected error for key over bcrypt limit")
	}
}

func TestAPIKeyVerifier_Plain(t *testing.T) {
	v, err := NewAPIKeyVerifier("secret-key-abcdef", "")
	if err != nil {
		t.Fatalf("NewAPIKeyVerifier failed: %v", err)
	}

	if !v.Enabled() {
		t.Error("verifier with plain key should be enabled")
	}
	if !v.Verify("secret-key-abcdef") {
		t.Error("matching key should verify")
	}
	if v.Verify("wrong-key") {
		t.Error("wrong key should not verify")
	}
	if v.Verify("") {
		t.Error("empty key should not verify")
	}
}

func TestAPIKeyVerifier_Hash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-key-abcdef"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword failed: %v", err)
	}

	v, err := NewAPIKeyVerifier("", string(hash))
	if err != nil {
		t.Fatalf("NewAPIKeyVerifier failed: %v", err)
	}

	if !v.Verify("secret-key-abcdef") {
		t.Error("matching key should verify against hash")
	}
	if v.Verify("wrong-key") {
		t.Error("wrong key should not verify against hash")
	}
}

func TestAPIKeyVerifier_HashWinsOverPlain(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-key-abcdef"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword failed: %v", err)
	}

	v, err := NewAPIKeyVerifier("plain-key-abcdef", string(hash))
	if err != nil {
		t.Fatalf("NewAPIKeyVerifier failed: %v", err)
	}

	if !v.Verify("hashed-key-abcdef") {
		t.Error("hash credential should verify")
	}
	if v.Verify("plain-key-abcdef") {
		t.Error("plain credential should be ignored when hash is set")
	}
}

func TestAPIKeyVerifier_InvalidHash(t *testing.T) {
	if _, err := NewAPIKeyVerifier("", "not-a-bcrypt-hash"); err == nil {
		t.Error("expected error for invalid hash")
	}
}

func TestAPIKeyVerifier_Empty(t *testing.T) {
	v, err := NewAPIKeyVerifier("", "")
	if err != nil {
		t.Fatalf("NewAPIKeyVerifier failed: %v", err)
	}

	if v.Enabled() {
		t.Error("empty verifier should not be enabled")
	}
	if v.Verify("anything") {
		t.Error("empty verifier should reject everything")
	}
}
