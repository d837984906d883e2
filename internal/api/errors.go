package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/token-curator/internal/errors"
	"github.com/token-curator/internal/logging"
	"github.com/token-curator/internal/service"
	"github.com/token-curator/internal/types"
)

// ErrorResponse represents an API error response. It keeps the result-record shape.
type ErrorResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Error   *types.ServiceError `json:"error"`
}

// Common error codes produced by the transport itself
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	respondJSON(w, statusCode, ErrorResponse{
		Success: false,
		Message: message,
		Error: &types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondResult sends body with successStatus when res succeeded, otherwise an error
// response whose status derives from the categorized failure.
func respondResult(w http.ResponseWriter, successStatus int, res service.Result, body interface{}) {
	if res.Success {
		respondJSON(w, successStatus, body)
		return
	}

	catErr := apperrors.Categorize(res.Err)
	if catErr == nil {
		catErr = apperrors.NewInternalError(res.Message, nil)
	}
	if catErr.StatusCode >= http.StatusInternalServerError {
		logging.WithError(catErr).Error("Request failed")
	}
	respondJSON(w, catErr.StatusCode, ErrorResponse{
		Success: false,
		Message: catErr.Message,
		Error:   catErr.ToServiceError(),
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logging.WithError(err).Warn("Failed to encode response")
		}
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// queryInt reads an optional integer query parameter
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
