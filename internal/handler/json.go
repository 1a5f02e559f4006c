package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/msomdec/merchtrax/internal/domain"
)

// writeJSON sends a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write JSON response", "error", err)
	}
}

// writeError sends a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// readJSON decodes the request body into the given destination.
func readJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// statusFor maps a service error to an HTTP status and a client-safe message.
// Visits owned by someone else are reported as missing.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusNotFound, "Not found."
	case errors.Is(err, domain.ErrNoActiveTimer):
		return http.StatusConflict, "No timer is running for you."
	case errors.Is(err, domain.ErrVisitCompleted):
		return http.StatusConflict, "That visit is already completed."
	case errors.Is(err, domain.ErrDuplicateEmail):
		return http.StatusConflict, "An account with that email already exists."
	default:
		return http.StatusInternalServerError, "An unexpected error occurred. Please try again."
	}
}

// writeServiceError logs unexpected errors and writes the mapped JSON error.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error(op, "error", err)
	}
	writeError(w, status, msg)
}
