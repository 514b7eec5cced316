package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/skuforge/skuforge/internal/models"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WritePipelineError maps the error taxonomy onto HTTP status codes:
// validation 400, not-found 404, security 403, sync-in-progress 409,
// everything else 500.
func WritePipelineError(w http.ResponseWriter, err error) error {
	if errors.Is(err, models.ErrSyncInProgress) {
		return WriteError(w, http.StatusConflict, err.Error())
	}
	switch models.KindOf(err) {
	case models.ErrorKindValidation:
		return WriteError(w, http.StatusBadRequest, err.Error())
	case models.ErrorKindNotFound:
		return WriteError(w, http.StatusNotFound, err.Error())
	case models.ErrorKindSecurity:
		return WriteError(w, http.StatusForbidden, err.Error())
	default:
		return WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
