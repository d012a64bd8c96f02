package handlers

import (
	"mime"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

const pptxContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

// RegenerateRequest for POST /api/talk-scripts/{sid}/regenerate
type RegenerateRequest struct {
	Sections []string `json:"sections"`
}

// CreateExportRequest for POST /api/talk-scripts/{sid}/exports
type CreateExportRequest struct {
	ExportType string `json:"export_type"`
}

// TalkScriptsHandler handles talk-script generation and exports.
type TalkScriptsHandler struct {
	scripts  services.TalkScriptService
	exports  services.ExportService
	activity services.ActivityService
	logger   *zap.Logger
}

// NewTalkScriptsHandler creates a new talk-scripts handler.
func NewTalkScriptsHandler(
	scripts services.TalkScriptService,
	exports services.ExportService,
	activity services.ActivityService,
	logger *zap.Logger,
) *TalkScriptsHandler {
	return &TalkScriptsHandler{scripts: scripts, exports: exports, activity: activity, logger: logger}
}

// RegisterRoutes registers the talk-scripts handler's routes on the given mux.
func (h *TalkScriptsHandler) RegisterRoutes(mux *http.ServeMux, g Guards) {
	base := "/api/talk-scripts"

	mux.HandleFunc("GET "+base, g.User(h.List))
	mux.HandleFunc("POST "+base+"/generate", g.User(h.Generate))
	mux.HandleFunc("GET "+base+"/{sid}", g.User(h.Get))
	mux.HandleFunc("PUT "+base+"/{sid}", g.User(h.Update))
	mux.HandleFunc("DELETE "+base+"/{sid}", g.User(h.Delete))
	mux.HandleFunc("POST "+base+"/{sid}/regenerate", g.User(h.Regenerate))

	mux.HandleFunc("POST "+base+"/{sid}/exports", g.User(h.CreateExport))
	mux.HandleFunc("GET /api/exports", g.User(h.ListExports))
	mux.HandleFunc("GET /api/exports/{eid}", g.User(h.GetExport))
	mux.HandleFunc("GET /api/exports/{eid}/download", g.User(h.Download))
}

// List handles GET /api/talk-scripts
// Query: company_id, status, limit (default 20, max 100), offset.
func (h *TalkScriptsHandler) List(w http.ResponseWriter, r *http.Request) {
	companyID, ok := queryUUID(w, r, "company_id", h.logger)
	if !ok {
		return
	}

	scripts, total, err := h.scripts.List(r.Context(), models.TalkScriptFilter{
		CompanyID: companyID,
		Status:    r.URL.Query().Get("status"),
		Limit:     queryInt(r, "limit", 20, 100),
		Offset:    queryInt(r, "offset", 0, 0),
	})
	if err != nil {
		writeServiceError(w, err, h.logger, "list_talk_scripts")
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: scripts, Total: total}, h.logger)
}

// Generate handles POST /api/talk-scripts/generate
// Responds 202 with the pending script; generation runs in the background.
func (h *TalkScriptsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req services.GenerateScriptRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	script, err := h.scripts.Generate(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "generate_talk_script")
		return
	}

	h.record(r, models.ActionCreate, script)
	writeData(w, http.StatusAccepted, script, h.logger)
}

// Get handles GET /api/talk-scripts/{sid}
func (h *TalkScriptsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathScriptID, h.logger)
	if !ok {
		return
	}

	script, err := h.scripts.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "get_talk_script")
		return
	}
	writeData(w, http.StatusOK, script, h.logger)
}

// Update handles PUT /api/talk-scripts/{sid}
func (h *TalkScriptsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathScriptID, h.logger)
	if !ok {
		return
	}

	var req services.UpdateScriptRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	script, err := h.scripts.Update(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "update_talk_script")
		return
	}

	h.record(r, models.ActionUpdate, script)
	writeData(w, http.StatusOK, script, h.logger)
}

// Delete handles DELETE /api/talk-scripts/{sid}
func (h *TalkScriptsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathScriptID, h.logger)
	if !ok {
		return
	}

	if err := h.scripts.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, h.logger, "delete_talk_script")
		return
	}

	h.activity.Record(r.Context(), models.ActionDelete, "talk_script", id.String(),
		services.ActivitySummary(models.ActionDelete, "talk_script", id.String()), requestMeta(r))
	w.WriteHeader(http.StatusNoContent)
}

// Regenerate handles POST /api/talk-scripts/{sid}/regenerate
// An empty body regenerates the sections selected originally.
func (h *TalkScriptsHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathScriptID, h.logger)
	if !ok {
		return
	}

	var req RegenerateRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req, h.logger) {
		return
	}

	script, err := h.scripts.Regenerate(r.Context(), id, req.Sections)
	if err != nil {
		writeServiceError(w, err, h.logger, "regenerate_talk_script")
		return
	}

	h.record(r, models.ActionUpdate, script)
	writeData(w, http.StatusAccepted, script, h.logger)
}

// CreateExport handles POST /api/talk-scripts/{sid}/exports
func (h *TalkScriptsHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathScriptID, h.logger)
	if !ok {
		return
	}

	var req CreateExportRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req, h.logger) {
		return
	}

	export, err := h.exports.Create(r.Context(), id, req.ExportType)
	if err != nil {
		writeServiceError(w, err, h.logger, "create_export")
		return
	}

	h.activity.Record(r.Context(), models.ActionCreate, "export", export.ID.String(),
		services.ActivitySummary(models.ActionCreate, "export", export.ExportType), requestMeta(r))
	writeData(w, http.StatusAccepted, export, h.logger)
}

// ListExports handles GET /api/exports
func (h *TalkScriptsHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	exports, err := h.exports.List(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger, "list_exports")
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: exports, Total: len(exports)}, h.logger)
}

// GetExport handles GET /api/exports/{eid}
func (h *TalkScriptsHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathExportID, h.logger)
	if !ok {
		return
	}

	export, err := h.exports.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "get_export")
		return
	}
	writeData(w, http.StatusOK, export, h.logger)
}

// Download handles GET /api/exports/{eid}/download
// Streams the file as an attachment and records a download activity.
func (h *TalkScriptsHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathExportID, h.logger)
	if !ok {
		return
	}

	export, file, err := h.exports.Open(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "download_export")
		return
	}
	defer file.Close()

	name := export.FileName()
	w.Header().Set("Content-Type", pptxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))

	h.activity.Record(r.Context(), models.ActionDownload, "export", export.ID.String(),
		services.ActivitySummary(models.ActionDownload, "export", name), requestMeta(r))

	modTime := export.CreatedAt
	if export.CompletedAt != nil {
		modTime = *export.CompletedAt
	}
	http.ServeContent(w, r, name, modTime.Truncate(time.Second), file)
}

func (h *TalkScriptsHandler) record(r *http.Request, action string, s *models.TalkScript) {
	label := s.CompanyName
	if label == "" {
		label = s.ID.String()
	}
	h.activity.Record(r.Context(), action, "talk_script", s.ID.String(),
		services.ActivitySummary(action, "talk_script", label), requestMeta(r))
}
