// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// statusWriter captures the status code and body size of a response.
// Shared by the logging and metrics middleware.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(b)
	sw.size += n
	return n, err
}

// RequestLogger tags each request with a short id (echoed in
// X-Request-ID) and logs it. Quiet mode logs failures only.
func RequestLogger(verbose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := uuid.New().String()[:8]
			w.Header().Set("X-Request-ID", id)

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			if !verbose && sw.status < 400 {
				return
			}
			log.Printf("req %s: %s %s %d %dB %v source=%s",
				id, r.Method, r.URL.Path, sw.status, sw.size,
				time.Since(start), ClientIP(r))
		})
	}
}
