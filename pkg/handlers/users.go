package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

// UsersHandler handles user administration and the activity log.
type UsersHandler struct {
	users    services.UserService
	activity services.ActivityService
	logger   *zap.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(users services.UserService, activity services.ActivityService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{users: users, activity: activity, logger: logger}
}

// RegisterRoutes registers the users handler's routes on the given mux.
func (h *UsersHandler) RegisterRoutes(mux *http.ServeMux, g Guards) {
	mux.HandleFunc("GET /api/users", g.Admin(h.List))
	mux.HandleFunc("POST /api/users", g.Admin(h.Create))
	mux.HandleFunc("GET /api/users/{uid}", g.Admin(h.Get))
	mux.HandleFunc("PUT /api/users/{uid}", g.Admin(h.Update))
	mux.HandleFunc("DELETE /api/users/{uid}", g.Admin(h.Delete))
	mux.HandleFunc("GET /api/activity-logs", g.Admin(h.ActivityLogs))
}

// List handles GET /api/users
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger, "list_users")
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: users, Total: len(users)}, h.logger)
}

// Get handles GET /api/users/{uid}
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathUserID, h.logger)
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "get_user")
		return
	}
	writeData(w, http.StatusOK, user, h.logger)
}

// Create handles POST /api/users
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateUserRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	user, err := h.users.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "create_user")
		return
	}

	h.activity.Record(r.Context(), models.ActionCreate, "user", user.ID.String(),
		services.ActivitySummary(models.ActionCreate, "user", user.Username), requestMeta(r))
	writeData(w, http.StatusCreated, user, h.logger)
}

// Update handles PUT /api/users/{uid}
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathUserID, h.logger)
	if !ok {
		return
	}

	var req services.UpdateUserRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	user, err := h.users.Update(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "update_user")
		return
	}

	h.activity.Record(r.Context(), models.ActionUpdate, "user", user.ID.String(),
		services.ActivitySummary(models.ActionUpdate, "user", user.Username), requestMeta(r))
	writeData(w, http.StatusOK, user, h.logger)
}

// Delete handles DELETE /api/users/{uid}
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathUserID, h.logger)
	if !ok {
		return
	}
	actorID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger, "delete_user")
		return
	}

	if err := h.users.Delete(r.Context(), id, actorID); err != nil {
		writeServiceError(w, err, h.logger, "delete_user")
		return
	}

	h.activity.Record(r.Context(), models.ActionDelete, "user", id.String(),
		services.ActivitySummary(models.ActionDelete, "user", id.String()), requestMeta(r))
	w.WriteHeader(http.StatusNoContent)
}

// ActivityLogs handles GET /api/activity-logs
// Query: user_id, action, target_type, limit (default 100, max 1000).
func (h *UsersHandler) ActivityLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUUID(w, r, "user_id", h.logger)
	if !ok {
		return
	}

	q := r.URL.Query()
	logs, err := h.activity.List(r.Context(), models.ActivityLogFilter{
		UserID:     userID,
		Action:     q.Get("action"),
		TargetType: q.Get("target_type"),
		Limit:      queryInt(r, "limit", 100, 1000),
	})
	if err != nil {
		writeServiceError(w, err, h.logger, "list_activity_logs")
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: logs, Total: len(logs)}, h.logger)
}
