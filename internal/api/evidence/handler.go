// Package evidence provides the HTTP download surface for archived
// evidence blobs.
package evidence

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/logwarden/logwarden/internal/evidence"
)

// Response helpers (local to avoid import cycle with api package)

const (
	errUnauthorized = "unauthorized"
	errNotFound     = "not_found"
	errInternal     = "internal_error"
)

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}{false, message}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// Handler serves archived evidence. Access control follows the locator
// strategy: signed locators carry their own credential, public
// locators are open by deployment choice.
type Handler struct {
	archiver *evidence.Archiver
}

// NewHandler creates an evidence download handler.
func NewHandler(archiver *evidence.Archiver) *Handler {
	return &Handler{archiver: archiver}
}

// DownloadSigned handles GET /api/v1/evidence/{key}?token=...
// The token is an HS256 JWT minted by the archiver; its subject must
// name exactly the requested blob.
func (h *Handler) DownloadSigned(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	token := r.URL.Query().Get("token")
	if token == "" {
		jsonError(w, http.StatusUnauthorized, errUnauthorized)
		return
	}

	subject, err := h.archiver.Verify(token)
	if err != nil {
		log.Printf("evidence token rejected for %q: %v", key, err)
		jsonError(w, http.StatusUnauthorized, errUnauthorized)
		return
	}
	if subject != key {
		log.Printf("evidence token subject %q does not match key %q", subject, key)
		jsonError(w, http.StatusUnauthorized, errUnauthorized)
		return
	}

	h.serve(w, r, key)
}

// DownloadPublic handles GET /evidence/{key} in public URL mode.
func (h *Handler) DownloadPublic(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, chi.URLParam(r, "key"))
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, key string) {
	// Same guard the blob store applies; a key that cannot exist is a 404,
	// not a server error.
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		jsonError(w, http.StatusNotFound, errNotFound)
		return
	}

	data, err := h.archiver.Fetch(r.Context(), key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			jsonError(w, http.StatusNotFound, errNotFound)
			return
		}
		log.Printf("evidence fetch failed for %q: %v", key, err)
		jsonError(w, http.StatusInternalServerError, errInternal)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("evidence write failed for %q: %v", key, err)
	}
}
