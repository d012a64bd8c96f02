package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Path parameters carrying record IDs, with the error code reported when one is malformed.
const (
	pathUserID      = "uid"
	pathTemplateID  = "tid"
	pathCompanyID   = "cid"
	pathCategoryID  = "catid"
	pathProductID   = "prid"
	pathKnowledgeID = "kid"
	pathUploadID    = "upid"
	pathAnalysisID  = "aid"
	pathScriptID    = "sid"
	pathExportID    = "eid"
	pathOutcomeID   = "oid"
	pathTrainingID  = "trid"
)

var pathErrorCodes = map[string]string{
	pathUserID:      "invalid_user_id",
	pathTemplateID:  "invalid_template_id",
	pathCompanyID:   "invalid_company_id",
	pathCategoryID:  "invalid_category_id",
	pathProductID:   "invalid_product_id",
	pathKnowledgeID: "invalid_knowledge_id",
	pathUploadID:    "invalid_upload_id",
	pathAnalysisID:  "invalid_analysis_id",
	pathScriptID:    "invalid_script_id",
	pathExportID:    "invalid_export_id",
	pathOutcomeID:   "invalid_outcome_id",
	pathTrainingID:  "invalid_training_id",
}

// ParsePathID extracts and validates a UUID path parameter.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
func ParsePathID(w http.ResponseWriter, r *http.Request, pathParam string, logger *zap.Logger) (uuid.UUID, bool) {
	code, ok := pathErrorCodes[pathParam]
	if !ok {
		code = "invalid_id"
	}
	return parseUUID(w, r, pathParam, code, "Invalid ID format", logger)
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID parses an optional UUID query parameter. An empty value yields nil.
func queryUUID(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_"+name, "Invalid "+name); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}
	return &id, true
}

// queryInt parses an optional integer query parameter, falling back to def
// when it is missing or malformed, and clamping it to [0, max] when max > 0.
func queryInt(r *http.Request, name string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}
