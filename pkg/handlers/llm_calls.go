package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

// LLMCallsHandler serves the AI call audit trail to administrators.
type LLMCallsHandler struct {
	calls  services.LLMCallService
	logger *zap.Logger
}

// NewLLMCallsHandler creates a new LLM calls handler.
func NewLLMCallsHandler(calls services.LLMCallService, logger *zap.Logger) *LLMCallsHandler {
	return &LLMCallsHandler{calls: calls, logger: logger}
}

// RegisterRoutes registers the LLM calls handler's routes on the given mux.
func (h *LLMCallsHandler) RegisterRoutes(mux *http.ServeMux, g Guards) {
	mux.HandleFunc("GET /api/llm-calls", g.Admin(h.List))
	mux.HandleFunc("GET /api/llm-calls/summary", g.Admin(h.Summary))
}

// List handles GET /api/llm-calls
// Query: resource_type, resource_id, purpose, status, limit.
func (h *LLMCallsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	calls, err := h.calls.List(r.Context(), models.LLMCallFilter{
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		Purpose:      q.Get("purpose"),
		Status:       q.Get("status"),
		Limit:        queryInt(r, "limit", 50, 500),
	})
	if err != nil {
		writeServiceError(w, err, h.logger, "list_llm_calls")
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: calls, Total: len(calls)}, h.logger)
}

// Summary handles GET /api/llm-calls/summary
func (h *LLMCallsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	summary, err := h.calls.Summary(r.Context(), q.Get("resource_type"), q.Get("resource_id"))
	if err != nil {
		writeServiceError(w, err, h.logger, "llm_call_summary")
		return
	}
	writeData(w, http.StatusOK, summary, h.logger)
}
