package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

// SettingsHandler handles system settings and the AI assistant.
type SettingsHandler struct {
	settings services.SettingsService
	chat     services.AIChatService
	activity services.ActivityService
	logger   *zap.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(
	settings services.SettingsService,
	chat services.AIChatService,
	activity services.ActivityService,
	logger *zap.Logger,
) *SettingsHandler {
	return &SettingsHandler{settings: settings, chat: chat, activity: activity, logger: logger}
}

// RegisterRoutes registers the settings handler's routes on the given mux.
func (h *SettingsHandler) RegisterRoutes(mux *http.ServeMux, g Guards) {
	mux.HandleFunc("GET /api/settings", g.Admin(h.Get))
	mux.HandleFunc("PUT /api/settings", g.Admin(h.Update))
	mux.HandleFunc("GET /api/settings/public", g.Public(h.Public))
	mux.HandleFunc("POST /api/settings/test-ai", g.Admin(h.TestAI))
	mux.HandleFunc("POST /api/ai/chat", g.User(h.Chat))
}

// Get handles GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger, "get_settings")
		return
	}
	writeData(w, http.StatusOK, settings, h.logger)
}

// Update handles PUT /api/settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.SettingsUpdate
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	settings, err := h.settings.Update(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "update_settings")
		return
	}

	h.activity.Record(r.Context(), models.ActionUpdate, "settings", "system", "Updated system settings", requestMeta(r))
	writeData(w, http.StatusOK, settings, h.logger)
}

// Public handles GET /api/settings/public
func (h *SettingsHandler) Public(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Public(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger, "get_public_settings")
		return
	}
	writeData(w, http.StatusOK, settings, h.logger)
}

// TestAI handles POST /api/settings/test-ai
// A failed connection is reported in the body with 200; the request itself succeeded.
func (h *SettingsHandler) TestAI(w http.ResponseWriter, r *http.Request) {
	result, err := h.settings.TestAIConnection(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger, "test_ai")
		return
	}
	writeData(w, http.StatusOK, result, h.logger)
}

// Chat handles POST /api/ai/chat
func (h *SettingsHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req services.ChatRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	reply, err := h.chat.Chat(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "ai_chat")
		return
	}
	writeData(w, http.StatusOK, reply, h.logger)
}
