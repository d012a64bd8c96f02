package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// MaintenanceChecker reports whether the system is in maintenance mode.
type MaintenanceChecker interface {
	MaintenanceStatus(ctx context.Context) (enabled bool, message string)
}

// Middleware provides HTTP authentication middleware.
// It is thin and delegates authentication logic to AuthService.
type Middleware struct {
	authService AuthService
	maintenance MaintenanceChecker
	logger      *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given AuthService.
// maintenance may be nil.
func NewMiddleware(authService AuthService, maintenance MaintenanceChecker, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		maintenance: maintenance,
		logger:      logger,
	}
}

// RequireAuth authenticates the request and sets claims and token in context.
// Non-admin requests are refused with 503 while maintenance mode is on.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			m.unauthorized(w, "Authentication required")
			return
		}

		if m.maintenance != nil && !claims.IsAdmin() {
			if enabled, message := m.maintenance.MaintenanceStatus(r.Context()); enabled {
				if message == "" {
					message = "The system is under maintenance"
				}
				writeJSONError(w, http.StatusServiceUnavailable, "maintenance", message)
				return
			}
		}

		ctx := WithClaims(r.Context(), claims)
		if token != "" {
			ctx = context.WithValue(ctx, TokenKey, token)
		}
		next(w, r.WithContext(ctx))
	}
}

// RequireRole admits only users holding one of roles. It must run after RequireAuth.
func (m *Middleware) RequireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok {
				m.unauthorized(w, "Authentication required")
				return
			}

			if !claims.HasRole(roles...) {
				m.logger.Warn("Role check failed",
					zap.String("user_id", claims.Subject),
					zap.String("role", claims.Role),
					zap.Strings("required", roles),
					zap.String("path", r.URL.Path))
				writeJSONError(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
				return
			}

			next(w, r)
		}
	}
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusUnauthorized, "unauthorized", message)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
