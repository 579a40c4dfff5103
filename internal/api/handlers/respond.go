package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/isdelr/ender-accounts-be/internal/logger"
	"github.com/isdelr/ender-accounts-be/internal/services"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeServiceError maps service errors to statuses. Store failures never leak details.
func writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrConflict):
		http.Error(w, "User already exists", http.StatusBadRequest)
	case errors.Is(err, services.ErrUnauthorized):
		http.Error(w, "Incorrect email or password", http.StatusUnauthorized)
	case errors.Is(err, services.ErrAdminProtected):
		http.Error(w, "You cannot delete an admin", http.StatusBadRequest)
	case errors.Is(err, services.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, services.ErrNotFound):
		http.Error(w, "User not found", http.StatusNotFound)
	default:
		logger.Error(err).Msg(msg)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
