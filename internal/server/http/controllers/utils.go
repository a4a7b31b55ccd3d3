package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rzbill/spool/internal/codec"
	"github.com/rzbill/spool/internal/persistence"
	channelsvc "github.com/rzbill/spool/internal/services/channels"
)

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a 200 JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeNoContent writes a 204 No Content response.
func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, persistence.ErrInvalidGroup),
		codec.IsEncodeError(err),
		errors.Is(err, codec.ErrMissingType):
		return http.StatusBadRequest
	case errors.Is(err, channelsvc.ErrFiltered):
		return http.StatusUnprocessableEntity
	case errors.Is(err, persistence.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
