package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

// PreviewRequest for POST /api/prompt-templates/{tid}/preview
type PreviewRequest struct {
	Variables prompts.Vars `json:"variables"`
}

// PromptTemplatesHandler handles prompt templates and their version history.
type PromptTemplatesHandler struct {
	templates services.PromptTemplateService
	activity  services.ActivityService
	logger    *zap.Logger
}

// NewPromptTemplatesHandler creates a new prompt templates handler.
func NewPromptTemplatesHandler(templates services.PromptTemplateService, activity services.ActivityService, logger *zap.Logger) *PromptTemplatesHandler {
	return &PromptTemplatesHandler{templates: templates, activity: activity, logger: logger}
}

// RegisterRoutes registers the prompt templates handler's routes on the given mux.
func (h *PromptTemplatesHandler) RegisterRoutes(mux *http.ServeMux, g Guards) {
	base := "/api/prompt-templates"

	mux.HandleFunc("GET "+base, g.User(h.List))
	mux.HandleFunc("POST "+base, g.Admin(h.Create))
	mux.HandleFunc("GET "+base+"/{tid}", g.User(h.Get))
	mux.HandleFunc("PUT "+base+"/{tid}", g.Admin(h.Update))
	mux.HandleFunc("DELETE "+base+"/{tid}", g.Admin(h.Delete))
	mux.HandleFunc("GET "+base+"/{tid}/versions", g.User(h.Versions))
	mux.HandleFunc("POST "+base+"/{tid}/versions/{version}/restore", g.Admin(h.Restore))
	mux.HandleFunc("POST "+base+"/{tid}/default", g.Admin(h.SetDefault))
	mux.HandleFunc("POST "+base+"/{tid}/preview", g.User(h.Preview))
}

// List handles GET /api/prompt-templates
// Query: type, active_only.
func (h *PromptTemplatesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.PromptTemplateFilter{
		Type:       prompts.TemplateType(q.Get("type")),
		ActiveOnly: q.Get("active_only") == "true",
	}
	if filter.Type != "" && !filter.Type.Valid() {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_template_type", "Unknown template type"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	templates, err := h.templates.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, h.logger, "list_prompt_templates")
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: templates, Total: len(templates)}, h.logger)
}

// Get handles GET /api/prompt-templates/{tid}
func (h *PromptTemplatesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathTemplateID, h.logger)
	if !ok {
		return
	}

	tmpl, err := h.templates.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "get_prompt_template")
		return
	}
	writeData(w, http.StatusOK, tmpl, h.logger)
}

// Create handles POST /api/prompt-templates
func (h *PromptTemplatesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.PromptTemplateRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	tmpl, err := h.templates.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "create_prompt_template")
		return
	}

	h.record(r, models.ActionCreate, tmpl)
	writeData(w, http.StatusCreated, tmpl, h.logger)
}

// Update handles PUT /api/prompt-templates/{tid}
func (h *PromptTemplatesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathTemplateID, h.logger)
	if !ok {
		return
	}

	var req services.PromptTemplateRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	tmpl, err := h.templates.Update(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "update_prompt_template")
		return
	}

	h.record(r, models.ActionUpdate, tmpl)
	writeData(w, http.StatusOK, tmpl, h.logger)
}

// Delete handles DELETE /api/prompt-templates/{tid}
func (h *PromptTemplatesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathTemplateID, h.logger)
	if !ok {
		return
	}

	if err := h.templates.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, h.logger, "delete_prompt_template")
		return
	}

	h.activity.Record(r.Context(), models.ActionDelete, "prompt_template", id.String(),
		services.ActivitySummary(models.ActionDelete, "prompt_template", id.String()), requestMeta(r))
	w.WriteHeader(http.StatusNoContent)
}

// Versions handles GET /api/prompt-templates/{tid}/versions
func (h *PromptTemplatesHandler) Versions(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathTemplateID, h.logger)
	if !ok {
		return
	}

	versions, err := h.templates.ListVersions(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "list_prompt_versions")
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: versions, Total: len(versions)}, h.logger)
}

// Restore handles POST /api/prompt-templates/{tid}/versions/{version}/restore
func (h *PromptTemplatesHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathTemplateID, h.logger)
	if !ok {
		return
	}
	version, err := strconv.Atoi(r.PathValue("version"))
	if err != nil || version < 1 {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_version", "Invalid version number"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	tmpl, err := h.templates.RestoreVersion(r.Context(), id, version)
	if err != nil {
		writeServiceError(w, err, h.logger, "restore_prompt_version")
		return
	}

	h.record(r, models.ActionUpdate, tmpl)
	writeData(w, http.StatusOK, tmpl, h.logger)
}

// SetDefault handles POST /api/prompt-templates/{tid}/default
func (h *PromptTemplatesHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathTemplateID, h.logger)
	if !ok {
		return
	}

	tmpl, err := h.templates.SetDefault(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "set_default_prompt_template")
		return
	}

	h.record(r, models.ActionUpdate, tmpl)
	writeData(w, http.StatusOK, tmpl, h.logger)
}

// Preview handles POST /api/prompt-templates/{tid}/preview
func (h *PromptTemplatesHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathTemplateID, h.logger)
	if !ok {
		return
	}

	var req PreviewRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	preview, err := h.templates.Preview(r.Context(), id, req.Variables)
	if err != nil {
		writeServiceError(w, err, h.logger, "preview_prompt_template")
		return
	}
	writeData(w, http.StatusOK, preview, h.logger)
}

func (h *PromptTemplatesHandler) record(r *http.Request, action string, tmpl *models.PromptTemplate) {
	h.activity.Record(r.Context(), action, "prompt_template", tmpl.ID.String(),
		services.ActivitySummary(action, "prompt_template", tmpl.Name), requestMeta(r))
}
