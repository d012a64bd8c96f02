package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

// maxUploadBody caps the request body before the settings limit is applied by the service.
const maxUploadBody = 128 << 20

// CreateAnalysisRequest for POST /api/analyses
type CreateAnalysisRequest struct {
	CSVUploadID  uuid.UUID `json:"csv_upload_id"`
	CustomPrompt string    `json:"custom_prompt"`
}

// CSVHandler handles CSV uploads and their AI analyses.
type CSVHandler struct {
	csv      services.CSVService
	activity services.ActivityService
	logger   *zap.Logger
}

// NewCSVHandler creates a new CSV handler.
func NewCSVHandler(csv services.CSVService, activity services.ActivityService, logger *zap.Logger) *CSVHandler {
	return &CSVHandler{csv: csv, activity: activity, logger: logger}
}

// RegisterRoutes registers the CSV handler's routes on the given mux.
func (h *CSVHandler) RegisterRoutes(mux *http.ServeMux, g Guards) {
	mux.HandleFunc("GET /api/csv-uploads", g.User(h.ListUploads))
	mux.HandleFunc("POST /api/csv-uploads", g.User(h.Upload))
	mux.HandleFunc("GET /api/csv-uploads/{upid}", g.User(h.GetUpload))
	mux.HandleFunc("DELETE /api/csv-uploads/{upid}", g.User(h.DeleteUpload))

	mux.HandleFunc("GET /api/analyses", g.User(h.ListAnalyses))
	mux.HandleFunc("POST /api/analyses", g.User(h.CreateAnalysis))
	mux.HandleFunc("GET /api/analyses/{aid}", g.User(h.GetAnalysis))
}

// Upload handles POST /api/csv-uploads
// Expects multipart/form-data with the file in field "file".
func (h *CSVHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			if err := ErrorResponse(w, http.StatusRequestEntityTooLarge, "file_too_large", "File is too large"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Missing file field"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read upload", zap.Error(err))
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Could not read file"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	upload, err := h.csv.Upload(r.Context(), header.Filename, data)
	if err != nil {
		writeServiceError(w, err, h.logger, "upload_csv")
		return
	}

	h.activity.Record(r.Context(), models.ActionCreate, "csv_upload", upload.ID.String(),
		services.ActivitySummary(models.ActionCreate, "csv_upload", upload.FileName), requestMeta(r))
	writeData(w, http.StatusCreated, upload, h.logger)
}

// ListUploads handles GET /api/csv-uploads
func (h *CSVHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.csv.ListUploads(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger, "list_csv_uploads")
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: uploads, Total: len(uploads)}, h.logger)
}

// GetUpload handles GET /api/csv-uploads/{upid}
func (h *CSVHandler) GetUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathUploadID, h.logger)
	if !ok {
		return
	}

	upload, err := h.csv.GetUpload(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "get_csv_upload")
		return
	}
	writeData(w, http.StatusOK, upload, h.logger)
}

// DeleteUpload handles DELETE /api/csv-uploads/{upid}
func (h *CSVHandler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathUploadID, h.logger)
	if !ok {
		return
	}

	if err := h.csv.DeleteUpload(r.Context(), id); err != nil {
		writeServiceError(w, err, h.logger, "delete_csv_upload")
		return
	}

	h.activity.Record(r.Context(), models.ActionDelete, "csv_upload", id.String(),
		services.ActivitySummary(models.ActionDelete, "csv_upload", id.String()), requestMeta(r))
	w.WriteHeader(http.StatusNoContent)
}

// CreateAnalysis handles POST /api/analyses
// Responds 202 with the pending analysis.
func (h *CSVHandler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req CreateAnalysisRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	analysis, err := h.csv.CreateAnalysis(r.Context(), req.CSVUploadID, req.CustomPrompt)
	if err != nil {
		writeServiceError(w, err, h.logger, "create_analysis")
		return
	}
	writeData(w, http.StatusAccepted, analysis, h.logger)
}

// ListAnalyses handles GET /api/analyses
// Query: csv_upload_id.
func (h *CSVHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	uploadID, ok := queryUUID(w, r, "csv_upload_id", h.logger)
	if !ok {
		return
	}

	analyses, err := h.csv.ListAnalyses(r.Context(), uploadID)
	if err != nil {
		writeServiceError(w, err, h.logger, "list_analyses")
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: analyses, Total: len(analyses)}, h.logger)
}

// GetAnalysis handles GET /api/analyses/{aid}
func (h *CSVHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathAnalysisID, h.logger)
	if !ok {
		return
	}

	analysis, err := h.csv.GetAnalysis(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "get_analysis")
		return
	}
	writeData(w, http.StatusOK, analysis, h.logger)
}
