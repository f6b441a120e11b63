package evidence

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestFSStore_PutGet(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	ctx := context.Background()

	data := []byte("failed login for admin from 203.0.113.45")
	if err := store.Put(ctx, "evidence", "abc-123.log", data, "text/plain"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "evidence", "abc-123.log")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Get = %q, want %q", got, data)
	}

	// Missing blob is an error
	if _, err := store.Get(ctx, "evidence", "missing.log"); err == nil {
		t.Error("expected error for missing blob")
	}
}

func TestFSStore_RejectsTraversal(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	ctx := context.Background()

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"slash", "a/b.log"},
		{"backslash", `a\b.log`},
		{"dotdot", "..secret.log"},
		{"parent", "../escape.log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Put(ctx, "evidence", tt.key, []byte("x"), "text/plain"); err == nil {
				t.Errorf("expected Put error for key %q", tt.key)
			}
			if _, err := store.Get(ctx, "evidence", tt.key); err == nil {
				t.Errorf("expected Get error for key %q", tt.key)
			}
		})
	}
}

func TestFSStore_RequiresDir(t *testing.T) {
	if _, err := NewFSStore(""); err == nil {
		t.Error("expected error for empty directory")
	}
}

func TestSigner_SignAndVerify(t *testing.T) {
	signer := NewSigner([]byte("test-secret-key-32-bytes-long!!"), 15*time.Minute)

	token, err := signer.Sign("abc-123.log")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	key, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if key != "abc-123.log" {
		t.Errorf("key = %q, want abc-123.log", key)
	}
}

func TestSigner_InvalidToken(t *testing.T) {
	signer := NewSigner([]byte("test-secret-key-32-bytes-long!!"), 15*time.Minute)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt-token"},
		{"wrong-segments", "a.b"},
		{"invalid-signature", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiJ0ZXN0In0.invalid"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := signer.Verify(tc.token)
			if err == nil {
				t.Error("expected error for invalid token")
			}
		})
	}
}

func TestSigner_DifferentSecret(t *testing.T) {
	s1 := NewSigner([]byte("secret-one-32-bytes-long!!!!!!!"), 15*time.Minute)
	s2 := NewSigner([]byte("secret-two-32-bytes-long!!!!!!!"), 15*time.Minute)

	token, err := s1.Sign("abc-123.log")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	// Token signed with s1 should fail verification with s2
	if _, err := s2.Verify(token); err == nil {
		t.Error("expected error verifying token with different secret")
	}
}

func TestSigner_ExpiredToken(t *testing.T) {
	signer := NewSigner([]byte("test-secret-key-32-bytes-long!!"), 1*time.Millisecond)

	token, err := signer.Sign("abc-123.log")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	// Wait for expiration
	time.Sleep(10 * time.Millisecond)

	if _, err := signer.Verify(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestArchiver_StoreSigned(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	signer := NewSigner([]byte("test-secret-key-32-bytes-long!!"), 15*time.Minute)

	archiver, err := NewArchiver(store, signer, &Config{
		BaseURL: "https://logwarden.example.com",
	})
	if err != nil {
		t.Fatalf("NewArchiver failed: %v", err)
	}

	ctx := context.Background()
	locator, ok := archiver.Store(ctx, "incident-1", []byte("raw payload"))
	if !ok {
		t.Fatal("expected store to succeed")
	}

	wantPrefix := "https://logwarden.example.com/api/v1/evidence/incident-1-"
	if !strings.HasPrefix(locator, wantPrefix) {
		t.Fatalf("locator = %q, want prefix %q", locator, wantPrefix)
	}

	// The locator token grants exactly the stored key
	u, err := url.Parse(locator)
	if err != nil {
		t.Fatalf("parse locator: %v", err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatal("expected token query parameter")
	}

	key, err := archiver.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	wantKeyPrefix := "incident-1-"
	if !strings.HasPrefix(key, wantKeyPrefix) || !strings.HasSuffix(key, ".log") {
		t.Errorf("key = %q, want %s*.log", key, wantKeyPrefix)
	}

	// The stored payload comes back by key
	data, err := archiver.Fetch(ctx, key)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "raw payload" {
		t.Errorf("Fetch = %q, want %q", data, "raw payload")
	}
}

func TestArchiver_StorePublic(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	archiver, err := NewArchiver(store, nil, &Config{
		URLMode: URLModePublic,
		BaseURL: "https://logwarden.example.com/",
	})
	if err != nil {
		t.Fatalf("NewArchiver failed: %v", err)
	}

	locator, ok := archiver.Store(context.Background(), "incident-2", []byte("raw"))
	if !ok {
		t.Fatal("expected store to succeed")
	}

	// Trailing slash on the base URL is normalized away
	wantPrefix := "https://logwarden.example.com/evidence/incident-2-"
	if !strings.HasPrefix(locator, wantPrefix) {
		t.Errorf("locator = %q, want prefix %q", locator, wantPrefix)
	}
	if strings.Contains(locator, "token=") {
		t.Error("public locator should not carry a token")
	}
}

func TestArchiver_StoreFailureIsBestEffort(t *testing.T) {
	archiver, err := NewArchiver(&failingStore{}, nil, &Config{
		URLMode: URLModePublic,
		BaseURL: "https://logwarden.example.com",
	})
	if err != nil {
		t.Fatalf("NewArchiver failed: %v", err)
	}

	locator, ok := archiver.Store(context.Background(), "incident-3", []byte("raw"))
	if ok {
		t.Error("expected ok=false on store failure")
	}
	if locator != "" {
		t.Errorf("locator = %q, want empty", locator)
	}
}

func TestArchiver_ConfigValidation(t *testing.T) {
	store := &failingStore{}

	// Signed mode requires a signer
	if _, err := NewArchiver(store, nil, &Config{URLMode: URLModeSigned}); err == nil {
		t.Error("expected error for signed mode without signer")
	}

	// Unknown mode is rejected
	if _, err := NewArchiver(store, nil, &Config{URLMode: "presigned"}); err == nil {
		t.Error("expected error for invalid url mode")
	}
}

// failingStore always fails.
type failingStore struct{}

func (f *failingStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	return errors.New("store unavailable")
}

func (f *failingStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	return nil, errors.New("store unavailable")
}
