package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()

	require.NoError(t, ErrorResponse(rec, http.StatusNotFound, "not_found", "company not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeBody(t, rec)
	assert.Equal(t, "not_found", body["error"])
	assert.Equal(t, "company not found", body["message"])
}

func TestWriteData_WrapsInEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()

	writeData(rec, http.StatusCreated, ListResponse{Items: []string{"a", "b"}, Total: 7}, zap.NewNop())

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(7), data["total"])
	assert.Len(t, data["items"], 2)
	assert.NotContains(t, body, "error")
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"wrapped not found", fmt.Errorf("company: %w", apperrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{"invalid input", apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{"locked", apperrors.ErrAccountLocked, http.StatusLocked, "account_locked"},
		{"ai off", apperrors.ErrAIDisabled, http.StatusServiceUnavailable, "ai_disabled"},
		{"processing", apperrors.ErrAlreadyProcessing, http.StatusConflict, "already_processing"},
		{"daily budget", apperrors.ErrTokenLimitReached, http.StatusTooManyRequests, "token_limit_reached"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "get_company_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tt.err, zap.NewNop(), "get_company")

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantCode, body["error"])
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, body["message"], "boom")
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Acme"}`))
	assert.True(t, decodeJSON(rec, req, &dst, zap.NewNop()))
	assert.Equal(t, "Acme", dst.Name)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	assert.False(t, decodeJSON(rec, req, &dst, zap.NewNop()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeBody(t, rec)["error"])
}
