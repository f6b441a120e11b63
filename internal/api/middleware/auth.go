package middleware

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/logwarden/logwarden/internal/metrics"
	"github.com/logwarden/logwarden/internal/security"
)

// APIKeyHeader carries the shared ingest credential.
const APIKeyHeader = "x-api-key"

// jsonUnauthorized writes the 401 envelope. The wording is part of the
// webhook contract.
func jsonUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}{false, "unauthorized"})
}

// APIKeyAuth returns middleware that checks the x-api-key header
// against the configured credential. With no credential configured
// every request passes. Rejected requests see no handler side effects.
func APIKeyAuth(verifier *security.APIKeyVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil || !verifier.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			if !verifier.Verify(r.Header.Get(APIKeyHeader)) {
				metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
				log.Printf("api key auth failed for %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
				jsonUnauthorized(w)
				return
			}

			metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
			next.ServeHTTP(w, r)
		})
	}
}
