package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// GetUserIDFromContext extracts the user ID from the claims in the context.
// Returns uuid.Nil and false if not authenticated or the subject is not a UUID.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	claims, ok := GetClaims(ctx)
	if !ok || claims.Subject == "" {
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return userID, true
}

// RequireUserIDFromContext extracts the user ID from context and returns an error if not found.
// Use this when user ID is required for the operation.
func RequireUserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, fmt.Errorf("valid user ID not found in context")
	}
	return userID, nil
}

// GetRoleFromContext returns the role of the authenticated user, or "" when unauthenticated.
func GetRoleFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok {
		return ""
	}
	return claims.Role
}

// CanViewAll reports whether the authenticated user may see records created by others.
func CanViewAll(ctx context.Context) bool {
	claims, ok := GetClaims(ctx)
	return ok && claims.HasRole(RoleAdmin, RoleSalesManager)
}
