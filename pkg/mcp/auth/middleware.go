// Package mcpauth provides MCP-specific authentication middleware.
// It wraps the core auth service with RFC 6750 Bearer token error responses.
package mcpauth

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
)

// Middleware authenticates MCP requests. Unlike the general auth middleware,
// failures carry RFC 6750 WWW-Authenticate headers.
type Middleware struct {
	authService auth.AuthService
	maintenance auth.MaintenanceChecker
	logger      *zap.Logger
}

// NewMiddleware creates a new MCP auth middleware. maintenance may be nil.
func NewMiddleware(authService auth.AuthService, maintenance auth.MaintenanceChecker, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		maintenance: maintenance,
		logger:      logger,
	}
}

// RequireAuth validates the token and injects claims into the context.
// Non-admin callers are refused while maintenance mode is on.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			m.logger.Debug("MCP auth failed: invalid or missing token",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			m.writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_token", "The access token is invalid or expired")
			return
		}

		if m.maintenance != nil && !claims.IsAdmin() {
			if enabled, _ := m.maintenance.MaintenanceStatus(r.Context()); enabled {
				w.Header().Set("Retry-After", "300")
				http.Error(w, "The system is under maintenance", http.StatusServiceUnavailable)
				return
			}
		}

		ctx := auth.WithClaims(r.Context(), claims)
		if token != "" {
			ctx = context.WithValue(ctx, auth.TokenKey, token)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeWWWAuthenticate writes an RFC 6750 Bearer token error response.
// See: https://datatracker.ietf.org/doc/html/rfc6750#section-3
func (m *Middleware) writeWWWAuthenticate(w http.ResponseWriter, status int, errorCode, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="`+errorCode+`", error_description="`+description+`"`)
	w.WriteHeader(status)
}
