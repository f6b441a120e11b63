package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/logwarden/logwarden/internal/security"
)

func okHandler() (http.Handler, *int) {
	calls := 0
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}), &calls
}

func TestAPIKeyAuth_NoCredentialConfigured(t *testing.T) {
	verifier, err := security.NewAPIKeyVerifier("", "")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	next, calls := okHandler()
	handler := APIKeyAuth(verifier)(next)

	req := httptest.NewRequest("POST", "/api/v1/ingest", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if *calls != 1 {
		t.Errorf("handler calls = %d, want 1", *calls)
	}
}

func TestAPIKeyAuth_NilVerifier(t *testing.T) {
	next, calls := okHandler()
	handler := APIKeyAuth(nil)(next)

	req := httptest.NewRequest("POST", "/api/v1/ingest", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if *calls != 1 {
		t.Errorf("handler calls = %d, want 1", *calls)
	}
}

func TestAPIKeyAuth_RejectsMissingAndWrongKey(t *testing.T) {
	verifier, err := security.NewAPIKeyVerifier("super-secret-key", "")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	tests := []struct {
		name string
		key  string
	}{
		{"missing key", ""},
		{"wrong key", "not-the-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, calls := okHandler()
			handler := APIKeyAuth(verifier)(next)

			req := httptest.NewRequest("POST", "/api/v1/ingest", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			if *calls != 0 {
				t.Errorf("handler calls = %d, want 0", *calls)
			}

			var resp struct {
				OK    bool   `json:"ok"`
				Error string `json:"error"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.OK {
				t.Error("ok = true, want false")
			}
			if resp.Error != "unauthorized" {
				t.Errorf("error = %q, want 'unauthorized'", resp.Error)
			}
		})
	}
}

func TestAPIKeyAuth_AcceptsCorrectKey(t *testing.T) {
	verifier, err := security.NewAPIKeyVerifier("super-secret-key", "")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	next, calls := okHandler()
	handler := APIKeyAuth(verifier)(next)

	req := httptest.NewRequest("POST", "/api/v1/ingest", nil)
	req.Header.Set(APIKeyHeader, "super-secret-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if *calls != 1 {
		t.Errorf("handler calls = %d, want 1", *calls)
	}
}

func TestAPIKeyAuth_HashedCredential(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("generate hash: %v", err)
	}
	verifier, err := security.NewAPIKeyVerifier("", string(hash))
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	next, _ := okHandler()
	handler := APIKeyAuth(verifier)(next)

	req := httptest.NewRequest("POST", "/api/v1/ingest", nil)
	req.Header.Set(APIKeyHeader, "hashed-secret-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	req = httptest.NewRequest("POST", "/api/v1/ingest", nil)
	req.Header.Set(APIKeyHeader, "wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
