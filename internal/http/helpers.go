package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tally/internal/core"
)

// errorResponse is the machine-readable error body: a stable code plus
// an optional human message.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeDomainError maps domain sentinel errors onto the API error
// taxonomy. Anything unrecognized is logged and reported as a bare
// internal_error so no detail leaks.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "")
	case errors.Is(err, core.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", "")
	case errors.Is(err, core.ErrInvalidType):
		writeError(w, http.StatusBadRequest, "invalid_type", "")
	case errors.Is(err, core.ErrNameRequired):
		writeError(w, http.StatusBadRequest, "name_required", "")
	case errors.Is(err, core.ErrNoUpdates):
		writeError(w, http.StatusBadRequest, "no_updates", "")
	case errors.Is(err, core.ErrInvalidUsername):
		writeError(w, http.StatusBadRequest, "invalid_username", "Username must be 3-32 characters (letters, numbers, . _ -)")
	case errors.Is(err, core.ErrInvalidPIN):
		writeError(w, http.StatusBadRequest, "invalid_pin", "PIN must be exactly 6 digits")
	case errors.Is(err, core.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username_taken", "")
	case errors.Is(err, core.ErrBadCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "")
	case errors.Is(err, core.ErrWrongPIN):
		writeError(w, http.StatusUnauthorized, "wrong_pin", "Current PIN is incorrect")
	default:
		slog.ErrorContext(r.Context(), "request failed",
			"error", err, "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

// decodeJSON decodes a request body, rejecting unparseable payloads.
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func badRequest(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, "invalid_body", "")
}
