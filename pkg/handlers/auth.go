package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/middleware"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

// LoginRequest for POST /api/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned on a successful login. Browser clients use the
// cookies; API clients send Token as a bearer token.
type LoginResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// ChangePasswordRequest for PUT /api/auth/password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AuthHandler handles login, logout and the current user.
type AuthHandler struct {
	users    services.UserService
	activity services.ActivityService
	sessions *auth.SessionStore
	cookies  auth.CookieSettings
	issuer   string
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(
	users services.UserService,
	activity services.ActivityService,
	sessions *auth.SessionStore,
	cookies auth.CookieSettings,
	issuer string,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:    users,
		activity: activity,
		sessions: sessions,
		cookies:  cookies,
		issuer:   issuer,
		logger:   logger,
	}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, g Guards) {
	mux.HandleFunc("POST /api/auth/login", g.Public(h.Login))
	mux.HandleFunc("POST /api/auth/logout", g.User(h.Logout))
	mux.HandleFunc("GET /api/auth/me", g.User(h.Me))
	mux.HandleFunc("PUT /api/auth/password", g.User(h.ChangePassword))
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	result, err := h.users.Login(r.Context(), req.Username, req.Password, middleware.ClientIP(r))
	if err != nil {
		writeServiceError(w, err, h.logger, "login")
		return
	}

	if h.sessions != nil {
		if err := h.sessions.Save(w, r, result.Principal, result.SessionMaxAge); err != nil {
			h.logger.Error("Failed to save session", zap.Error(err))
		}
	}
	auth.SetTokenCookie(w, h.cookies, result.Token, result.ExpiresAt)

	ctx := auth.WithClaims(r.Context(), auth.ClaimsFor(result.Principal, h.issuer))
	h.activity.Record(ctx, models.ActionLogin, "user", result.User.ID.String(),
		services.ActivitySummary(models.ActionLogin, "user", result.User.Username), requestMeta(r))

	writeData(w, http.StatusOK, LoginResponse{
		User:      result.User,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	}, h.logger)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.sessions != nil {
		if err := h.sessions.Clear(w, r); err != nil {
			h.logger.Warn("Failed to clear session", zap.Error(err))
		}
	}
	auth.ClearTokenCookie(w, h.cookies)

	if claims, ok := auth.GetClaims(r.Context()); ok {
		h.activity.Record(r.Context(), models.ActionLogout, "user", claims.Subject,
			services.ActivitySummary(models.ActionLogout, "user", claims.Username), requestMeta(r))
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Logged out"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, h.logger, "get_current_user")
		return
	}
	writeData(w, http.StatusOK, user, h.logger)
}

// ChangePassword handles PUT /api/auth/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	if err := h.users.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, err, h.logger, "change_password")
		return
	}

	h.activity.Record(r.Context(), models.ActionUpdate, "user", userID.String(), "Changed password", requestMeta(r))
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Password changed"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
