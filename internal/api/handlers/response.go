package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/isdelr/ender-accounts/internal/services"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Message: message})
}

func respondWithValidationError(w http.ResponseWriter, details []ValidationError) {
	respondJSON(w, http.StatusBadRequest, BadRequestErrorResponse{
		Message: "Invalid request data",
		Details: details,
	})
}

// statusFor maps a service error onto an HTTP status and outward message.
// Auth failures all read the same regardless of their internal reason.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrCorruptCredential):
		return http.StatusInternalServerError, "Internal server error"
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict, "Login name is already taken"
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "Account not found"
	case errors.Is(err, services.ErrAuthFailure):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "Access denied"
	case errors.Is(err, services.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func respondWithServiceError(w http.ResponseWriter, err error, msg string) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
	} else {
		log.Debug().Err(err).Int("status", status).Msg(msg)
	}
	respondWithError(w, status, message)
}
