package api

import (
	"encoding/json"
	"net/http"
)

// Response is the ok envelope every JSON error reply uses. Success
// replies carry their own payload shapes next to the ok field.
type Response struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// JSONError writes an error envelope with the given status code.
func JSONError(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Response{Error: message})
}

// JSONErrorDetails writes an error envelope carrying a diagnostic
// details string.
func JSONErrorDetails(w http.ResponseWriter, status int, message, details string) {
	JSON(w, status, Response{Error: message, Details: details})
}
