package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockResolver struct {
	byID    map[uuid.UUID]Principal
	byEmail map[string]Principal
}

func (m *mockResolver) ResolveByID(_ context.Context, id uuid.UUID) (Principal, error) {
	p, ok := m.byID[id]
	if !ok {
		return Principal{}, ErrInactiveUser
	}
	return p, nil
}

func (m *mockResolver) ResolveByEmail(_ context.Context, email string) (Principal, error) {
	p, ok := m.byEmail[email]
	if !ok {
		return Principal{}, ErrInactiveUser
	}
	return p, nil
}

type mockExternal struct {
	issuer string
	claims *Claims
	err    error
}

func (m *mockExternal) Accepts(issuer string) bool { return issuer == m.issuer }

func (m *mockExternal) ValidateToken(context.Context, string) (*Claims, error) {
	return m.claims, m.err
}

func externalToken(t *testing.T, issuer string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.RegisteredClaims{Issuer: issuer}).
		SignedString([]byte("irrelevant"))
	require.NoError(t, err)
	return token
}

func TestAuthService_BearerToken(t *testing.T) {
	issuer := newTestIssuer(t)
	p := Principal{UserID: uuid.New(), Username: "alice", Role: RoleSalesRep}
	token, _, err := issuer.Issue(p)
	require.NoError(t, err)

	svc := NewAuthService(issuer, nil, nil, nil, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/api/companies", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	claims, raw, err := svc.ValidateRequest(req)
	require.NoError(t, err)
	assert.Equal(t, token, raw)
	assert.Equal(t, p.UserID.String(), claims.Subject)
}

func TestAuthService_TokenCookieWinsOverHeader(t *testing.T) {
	issuer := newTestIssuer(t)
	token, _, err := issuer.Issue(Principal{UserID: uuid.New(), Role: RoleAdmin})
	require.NoError(t, err)

	svc := NewAuthService(issuer, nil, nil, nil, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: token})
	req.Header.Set("Authorization", "Bearer garbage")

	claims, _, err := svc.ValidateRequest(req)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestAuthService_RefreshesRoleFromResolver(t *testing.T) {
	issuer := newTestIssuer(t)
	userID := uuid.New()
	token, _, err := issuer.Issue(Principal{UserID: userID, Role: RoleSalesRep})
	require.NoError(t, err)

	resolver := &mockResolver{byID: map[uuid.UUID]Principal{
		userID: {UserID: userID, Username: "alice", Role: RoleSalesManager},
	}}
	svc := NewAuthService(issuer, nil, nil, resolver, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	claims, _, err := svc.ValidateRequest(req)
	require.NoError(t, err)
	assert.Equal(t, RoleSalesManager, claims.Role)
	assert.NotNil(t, claims.ExpiresAt)
}

func TestAuthService_InactiveUserRejected(t *testing.T) {
	issuer := newTestIssuer(t)
	token, _, err := issuer.Issue(Principal{UserID: uuid.New()})
	require.NoError(t, err)

	svc := NewAuthService(issuer, nil, nil, &mockResolver{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, _, err = svc.ValidateRequest(req)
	assert.ErrorIs(t, err, ErrInactiveUser)
}

func TestAuthService_HeaderErrors(t *testing.T) {
	svc := NewAuthService(newTestIssuer(t), nil, nil, nil, zap.NewNop())

	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{name: "missing", header: "", wantErr: ErrMissingAuthorization},
		{name: "basic scheme", header: "Basic abc", wantErr: ErrInvalidAuthorizationFormat},
		{name: "empty bearer", header: "Bearer ", wantErr: ErrInvalidAuthorizationFormat},
		{name: "garbage token", header: "Bearer garbage", wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			_, _, err := svc.ValidateRequest(req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthService_ExternalTokenMappedByEmail(t *testing.T) {
	userID := uuid.New()
	external := &mockExternal{
		issuer: "https://sso.example.com",
		claims: &Claims{Email: "bob@example.com"},
	}
	resolver := &mockResolver{byEmail: map[string]Principal{
		"bob@example.com": {UserID: userID, Username: "bob", Role: RoleSalesRep, Email: "bob@example.com"},
	}}
	svc := NewAuthService(newTestIssuer(t), nil, external, resolver, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+externalToken(t, "https://sso.example.com"))

	claims, _, err := svc.ValidateRequest(req)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "bob", claims.Username)
}

func TestAuthService_ExternalTokenErrors(t *testing.T) {
	resolver := &mockResolver{}

	t.Run("unknown issuer", func(t *testing.T) {
		svc := NewAuthService(newTestIssuer(t), nil, &mockExternal{issuer: "a"}, resolver, zap.NewNop())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+externalToken(t, "b"))
		_, _, err := svc.ValidateRequest(req)
		assert.ErrorIs(t, err, ErrUnknownIssuer)
	})

	t.Run("signature failure", func(t *testing.T) {
		external := &mockExternal{issuer: "a", err: errors.New("bad signature")}
		svc := NewAuthService(newTestIssuer(t), nil, external, resolver, zap.NewNop())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+externalToken(t, "a"))
		_, _, err := svc.ValidateRequest(req)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no local user", func(t *testing.T) {
		external := &mockExternal{issuer: "a", claims: &Claims{Email: "ghost@example.com"}}
		svc := NewAuthService(newTestIssuer(t), nil, external, resolver, zap.NewNop())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+externalToken(t, "a"))
		_, _, err := svc.ValidateRequest(req)
		assert.ErrorIs(t, err, ErrInactiveUser)
	})
}

func TestAuthService_Session(t *testing.T) {
	issuer := newTestIssuer(t)
	store := NewSessionStore("session-secret", CookieSettings{})
	p := Principal{UserID: uuid.New(), Username: "carol", Role: RoleAdmin}

	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil), p, 3600))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	svc := NewAuthService(issuer, store, nil, nil, zap.NewNop())
	claims, raw, err := svc.ValidateRequest(req)
	require.NoError(t, err)
	assert.Empty(t, raw)
	assert.Equal(t, p.UserID.String(), claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
}
