package handlers

import (
	"net/http"

	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/middleware"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

// ScopeMiddleware wraps a handler with a database scope.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// Guards composes authentication, role checks and database scopes for routes.
type Guards struct {
	Auth *auth.Middleware
	// UserScope opens a scope for the authenticated user (database.WithRequestScope).
	UserScope ScopeMiddleware
	// SystemScope opens a scope with no user, for public endpoints (database.WithSystemScope).
	SystemScope ScopeMiddleware
}

// Public serves h without authentication.
func (g Guards) Public(h http.HandlerFunc) http.HandlerFunc {
	return g.SystemScope(h)
}

// User serves h to any authenticated user.
func (g Guards) User(h http.HandlerFunc) http.HandlerFunc {
	return g.Auth.RequireAuth(g.UserScope(h))
}

// Role serves h to authenticated users holding one of roles.
func (g Guards) Role(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(h http.HandlerFunc) http.HandlerFunc {
		return g.Auth.RequireAuth(g.Auth.RequireRole(roles...)(g.UserScope(h)))
	}
}

// Admin serves h to administrators only.
func (g Guards) Admin(h http.HandlerFunc) http.HandlerFunc {
	return g.Role(auth.RoleAdmin)(h)
}

// Manager serves h to administrators and sales managers.
func (g Guards) Manager(h http.HandlerFunc) http.HandlerFunc {
	return g.Role(auth.RoleAdmin, auth.RoleSalesManager)(h)
}

func requestMeta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{IP: middleware.ClientIP(r), UserAgent: r.UserAgent()}
}
