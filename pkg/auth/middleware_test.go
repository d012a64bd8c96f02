package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAuthService struct {
	claims *Claims
	token  string
	err    error
}

func (m *mockAuthService) ValidateRequest(*http.Request) (*Claims, string, error) {
	return m.claims, m.token, m.err
}

type mockMaintenance struct {
	enabled bool
	message string
}

func (m *mockMaintenance) MaintenanceStatus(context.Context) (bool, string) {
	return m.enabled, m.message
}

func claimsWithRole(role string) *Claims {
	c := &Claims{Role: role}
	c.Subject = uuid.NewString()
	return c
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestMiddleware_RequireAuth_Success(t *testing.T) {
	claims := claimsWithRole(RoleSalesRep)
	m := NewMiddleware(&mockAuthService{claims: claims, token: "tok"}, nil, zap.NewNop())

	var gotClaims *Claims
	var gotToken string
	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = GetClaims(r.Context())
		gotToken, _ = GetToken(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/companies", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Same(t, claims, gotClaims)
	assert.Equal(t, "tok", gotToken)
}

func TestMiddleware_RequireAuth_Unauthorized(t *testing.T) {
	m := NewMiddleware(&mockAuthService{err: ErrMissingAuthorization}, nil, zap.NewNop())

	called := false
	rec := httptest.NewRecorder()
	m.RequireAuth(func(http.ResponseWriter, *http.Request) { called = true })(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec)["error"])
}

func TestMiddleware_RequireAuth_Maintenance(t *testing.T) {
	maintenance := &mockMaintenance{enabled: true, message: "Back at 10:00"}

	t.Run("blocks non-admin", func(t *testing.T) {
		m := NewMiddleware(&mockAuthService{claims: claimsWithRole(RoleSalesRep)}, maintenance, zap.NewNop())
		rec := httptest.NewRecorder()
		m.RequireAuth(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler must not run")
		})(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "maintenance", body["error"])
		assert.Equal(t, "Back at 10:00", body["message"])
	})

	t.Run("admin passes", func(t *testing.T) {
		m := NewMiddleware(&mockAuthService{claims: claimsWithRole(RoleAdmin)}, maintenance, zap.NewNop())
		rec := httptest.NewRecorder()
		m.RequireAuth(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestMiddleware_RequireRole(t *testing.T) {
	m := NewMiddleware(&mockAuthService{}, nil, zap.NewNop())
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

	tests := []struct {
		name   string
		claims *Claims
		want   int
	}{
		{name: "admin allowed", claims: claimsWithRole(RoleAdmin), want: http.StatusOK},
		{name: "manager allowed", claims: claimsWithRole(RoleSalesManager), want: http.StatusOK},
		{name: "rep forbidden", claims: claimsWithRole(RoleSalesRep), want: http.StatusForbidden},
		{name: "no claims", claims: nil, want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()
			m.RequireRole(RoleAdmin, RoleSalesManager)(ok)(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
