package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
)

// ApiResponse wraps data in the format expected by the frontend.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ListResponse is the data of paginated list endpoints.
type ListResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// errorStatus maps service errors to an HTTP status and error code.
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperrors.ErrConflict, http.StatusConflict, "conflict"},
	{apperrors.ErrAlreadyProcessing, http.StatusConflict, "already_processing"},
	{apperrors.ErrNotReady, http.StatusConflict, "not_ready"},
	{apperrors.ErrLastAdmin, http.StatusConflict, "last_admin"},
	{apperrors.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{apperrors.ErrInvalidRole, http.StatusBadRequest, "invalid_role"},
	{apperrors.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{apperrors.ErrAccountLocked, http.StatusLocked, "account_locked"},
	{apperrors.ErrAIDisabled, http.StatusServiceUnavailable, "ai_disabled"},
	{apperrors.ErrMaintenance, http.StatusServiceUnavailable, "maintenance"},
	{apperrors.ErrTokenLimitReached, http.StatusTooManyRequests, "token_limit_reached"},
}

// writeServiceError writes the response for an error returned by a service.
// Unrecognised errors are logged and reported as 500 with a generic message.
func writeServiceError(w http.ResponseWriter, err error, logger *zap.Logger, op string) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			if err := ErrorResponse(w, m.status, m.code, err.Error()); err != nil {
				logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
	}

	logger.Error("Request failed", zap.String("operation", op), zap.Error(err))
	if err := ErrorResponse(w, http.StatusInternalServerError, op+"_failed", "Internal server error"); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeData writes a successful ApiResponse.
func writeData(w http.ResponseWriter, status int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// decodeJSON decodes the request body into v. It writes a 400 and returns
// false when the body is not valid JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}
