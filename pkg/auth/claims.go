// Package auth provides authentication for ekaya-sales.
// It issues and validates HS256 access tokens, keeps browser sessions in
// signed cookies, verifies SSO tokens against JWKS endpoints and guards
// handlers by role.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing the authenticated claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw bearer token, when one was used.
	TokenKey contextKey = "token"
)

// Role names. They mirror the role check constraint on the users table.
const (
	RoleAdmin        = "admin"
	RoleSalesManager = "sales_manager"
	RoleSalesRep     = "sales_rep"
)

// Claims represents the token claims for an authenticated user.
// Subject holds the user UUID.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	Email    string `json:"email,omitempty"`
}

// HasRole reports whether the claims carry one of the given roles.
func (c *Claims) HasRole(roles ...string) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the claims belong to an administrator.
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// GetClaims retrieves claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok && claims != nil
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetToken retrieves the raw token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}
