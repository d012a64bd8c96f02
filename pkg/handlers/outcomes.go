package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

// OutcomesHandler handles sales outcomes and training sessions.
type OutcomesHandler struct {
	outcomes services.SalesOutcomeService
	training services.TrainingService
	activity services.ActivityService
	logger   *zap.Logger
}

// NewOutcomesHandler creates a new outcomes handler.
func NewOutcomesHandler(
	outcomes services.SalesOutcomeService,
	training services.TrainingService,
	activity services.ActivityService,
	logger *zap.Logger,
) *OutcomesHandler {
	return &OutcomesHandler{outcomes: outcomes, training: training, activity: activity, logger: logger}
}

// RegisterRoutes registers the outcomes handler's routes on the given mux.
func (h *OutcomesHandler) RegisterRoutes(mux *http.ServeMux, g Guards) {
	base := "/api/sales-outcomes"

	mux.HandleFunc("GET "+base, g.User(h.List))
	mux.HandleFunc("POST "+base, g.User(h.Create))
	mux.HandleFunc("GET "+base+"/stats", g.User(h.Stats))
	mux.HandleFunc("GET "+base+"/{oid}", g.User(h.Get))
	mux.HandleFunc("PUT "+base+"/{oid}", g.User(h.Update))
	mux.HandleFunc("DELETE "+base+"/{oid}", g.User(h.Delete))

	mux.HandleFunc("GET /api/training-sessions", g.User(h.ListTraining))
	mux.HandleFunc("POST /api/training-sessions", g.User(h.CreateTraining))
	mux.HandleFunc("GET /api/training-sessions/my-stats", g.User(h.MyTrainingStats))
	mux.HandleFunc("DELETE /api/training-sessions/{trid}", g.User(h.DeleteTraining))
}

// List handles GET /api/sales-outcomes
// Query: talk_script_id, outcome.
func (h *OutcomesHandler) List(w http.ResponseWriter, r *http.Request) {
	scriptID, ok := queryUUID(w, r, "talk_script_id", h.logger)
	if !ok {
		return
	}

	outcomes, err := h.outcomes.List(r.Context(), models.SalesOutcomeFilter{
		TalkScriptID: scriptID,
		Outcome:      r.URL.Query().Get("outcome"),
	})
	if err != nil {
		writeServiceError(w, err, h.logger, "list_sales_outcomes")
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: outcomes, Total: len(outcomes)}, h.logger)
}

// Stats handles GET /api/sales-outcomes/stats
func (h *OutcomesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.outcomes.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger, "sales_outcome_stats")
		return
	}
	writeData(w, http.StatusOK, stats, h.logger)
}

// Get handles GET /api/sales-outcomes/{oid}
func (h *OutcomesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathOutcomeID, h.logger)
	if !ok {
		return
	}

	outcome, err := h.outcomes.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "get_sales_outcome")
		return
	}
	writeData(w, http.StatusOK, outcome, h.logger)
}

// Create handles POST /api/sales-outcomes
func (h *OutcomesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.SalesOutcome
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	outcome, err := h.outcomes.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "create_sales_outcome")
		return
	}

	h.activity.Record(r.Context(), models.ActionCreate, "sales_outcome", outcome.ID.String(),
		services.ActivitySummary(models.ActionCreate, "sales_outcome", outcome.Outcome), requestMeta(r))
	writeData(w, http.StatusCreated, outcome, h.logger)
}

// Update handles PUT /api/sales-outcomes/{oid}
func (h *OutcomesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathOutcomeID, h.logger)
	if !ok {
		return
	}

	var req models.SalesOutcome
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	outcome, err := h.outcomes.Update(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "update_sales_outcome")
		return
	}

	h.activity.Record(r.Context(), models.ActionUpdate, "sales_outcome", outcome.ID.String(),
		services.ActivitySummary(models.ActionUpdate, "sales_outcome", outcome.Outcome), requestMeta(r))
	writeData(w, http.StatusOK, outcome, h.logger)
}

// Delete handles DELETE /api/sales-outcomes/{oid}
func (h *OutcomesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathOutcomeID, h.logger)
	if !ok {
		return
	}

	if err := h.outcomes.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, h.logger, "delete_sales_outcome")
		return
	}

	h.activity.Record(r.Context(), models.ActionDelete, "sales_outcome", id.String(),
		services.ActivitySummary(models.ActionDelete, "sales_outcome", id.String()), requestMeta(r))
	w.WriteHeader(http.StatusNoContent)
}

// ListTraining handles GET /api/training-sessions
func (h *OutcomesHandler) ListTraining(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.training.List(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger, "list_training_sessions")
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: sessions, Total: len(sessions)}, h.logger)
}

// CreateTraining handles POST /api/training-sessions
func (h *OutcomesHandler) CreateTraining(w http.ResponseWriter, r *http.Request) {
	var req models.TrainingSession
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	session, err := h.training.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "create_training_session")
		return
	}
	writeData(w, http.StatusCreated, session, h.logger)
}

// MyTrainingStats handles GET /api/training-sessions/my-stats
func (h *OutcomesHandler) MyTrainingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.training.MyStats(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger, "training_stats")
		return
	}
	writeData(w, http.StatusOK, stats, h.logger)
}

// DeleteTraining handles DELETE /api/training-sessions/{trid}
func (h *OutcomesHandler) DeleteTraining(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathTrainingID, h.logger)
	if !ok {
		return
	}

	if err := h.training.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, h.logger, "delete_training_session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
