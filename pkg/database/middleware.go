package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
)

// WithRequestScope creates middleware that opens a user-scoped DB connection.
// It runs AFTER auth middleware and uses the user ID from the claims.
// The connection is released after the handler returns.
func WithRequestScope(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			userID, err := auth.RequireUserIDFromContext(r.Context())
			if err != nil {
				logger.Error("Missing user context in claims", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal_error", "Missing user context")
				return
			}

			scope, err := db.WithUser(r.Context(), userID)
			if err != nil {
				logger.Error("Failed to acquire database connection",
					zap.String("user_id", userID.String()),
					zap.Error(err))
				writeError(w, http.StatusInternalServerError, "database_error", "Database connection error")
				return
			}
			defer scope.Close()

			next(w, r.WithContext(SetScope(r.Context(), scope)))
		}
	}
}

// WithSystemScope opens a scope without a user, for public endpoints such as login.
func WithSystemScope(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			scope, err := db.WithoutUser(r.Context())
			if err != nil {
				logger.Error("Failed to acquire database connection", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "database_error", "Database connection error")
				return
			}
			defer scope.Close()

			next(w, r.WithContext(SetScope(r.Context(), scope)))
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
