// Package health implements the liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// readyTimeout caps how long one readiness probe may spend across all
// dependency checks combined.
const readyTimeout = 5 * time.Second

// Checker reports whether a single external dependency is usable.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthResponse is the body of every probe endpoint. Checks maps a
// checker name to "ok" or the error text.
type HealthResponse struct {
	OK     bool              `json:"ok"`
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /health, /health/live and /health/ready.
type Handler struct {
	mu       sync.RWMutex
	checkers []Checker
}

// NewHandler creates a handler with no registered checkers. With none
// registered, Ready always reports ready.
func NewHandler() *Handler {
	return &Handler{}
}

// RegisterChecker adds a dependency to the readiness probe. Safe to call
// after the server has started.
func (h *Handler) RegisterChecker(c Checker) {
	h.mu.Lock()
	h.checkers = append(h.checkers, c)
	h.mu.Unlock()
}

func (h *Handler) snapshot() []Checker {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Checker(nil), h.checkers...)
}

func writeProbe(w http.ResponseWriter, code int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

// Health answers plain is-the-process-up checks.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, http.StatusOK, HealthResponse{OK: true, Status: "ok"})
}

// Live is the liveness probe. It never consults dependencies, so a
// broken store cannot get the process restarted.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, http.StatusOK, HealthResponse{OK: true, Status: "live"})
}

// Ready is the readiness probe: 200 only when every registered
// dependency answers within the timeout, 503 with per-check errors
// otherwise.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	checks := make(map[string]string)
	ready := true
	for _, c := range h.snapshot() {
		if err := c.Check(ctx); err != nil {
			checks[c.Name()] = err.Error()
			ready = false
			continue
		}
		checks[c.Name()] = "ok"
	}

	if !ready {
		writeProbe(w, http.StatusServiceUnavailable, HealthResponse{
			OK:     false,
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	writeProbe(w, http.StatusOK, HealthResponse{
		OK:     true,
		Status: "ready",
		Checks: checks,
	})
}
