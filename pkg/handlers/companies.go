package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

// CompaniesHandler handles target companies.
type CompaniesHandler struct {
	companies services.CompanyService
	activity  services.ActivityService
	logger    *zap.Logger
}

// NewCompaniesHandler creates a new companies handler.
func NewCompaniesHandler(companies services.CompanyService, activity services.ActivityService, logger *zap.Logger) *CompaniesHandler {
	return &CompaniesHandler{companies: companies, activity: activity, logger: logger}
}

// RegisterRoutes registers the companies handler's routes on the given mux.
func (h *CompaniesHandler) RegisterRoutes(mux *http.ServeMux, g Guards) {
	base := "/api/companies"

	mux.HandleFunc("GET "+base, g.User(h.List))
	mux.HandleFunc("POST "+base, g.User(h.Create))
	mux.HandleFunc("GET "+base+"/stats", g.User(h.Stats))
	mux.HandleFunc("GET "+base+"/{cid}", g.User(h.Get))
	mux.HandleFunc("PUT "+base+"/{cid}", g.User(h.Update))
	mux.HandleFunc("DELETE "+base+"/{cid}", g.User(h.Delete))
	mux.HandleFunc("POST "+base+"/{cid}/structure", g.User(h.Structure))
}

// List handles GET /api/companies
// Query: name, industry, scrape_status, limit (default 20, max 100), offset.
func (h *CompaniesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	companies, total, err := h.companies.List(r.Context(), models.CompanyFilter{
		Name:         q.Get("name"),
		Industry:     q.Get("industry"),
		ScrapeStatus: q.Get("scrape_status"),
		Limit:        queryInt(r, "limit", 20, 100),
		Offset:       queryInt(r, "offset", 0, 0),
	})
	if err != nil {
		writeServiceError(w, err, h.logger, "list_companies")
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: companies, Total: total}, h.logger)
}

// Stats handles GET /api/companies/stats
func (h *CompaniesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.companies.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger, "company_stats")
		return
	}
	writeData(w, http.StatusOK, stats, h.logger)
}

// Get handles GET /api/companies/{cid}
func (h *CompaniesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathCompanyID, h.logger)
	if !ok {
		return
	}

	company, err := h.companies.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "get_company")
		return
	}
	writeData(w, http.StatusOK, company, h.logger)
}

// Create handles POST /api/companies
func (h *CompaniesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CompanyRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	company, err := h.companies.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "create_company")
		return
	}

	h.record(r, models.ActionCreate, company)
	writeData(w, http.StatusCreated, company, h.logger)
}

// Update handles PUT /api/companies/{cid}
func (h *CompaniesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathCompanyID, h.logger)
	if !ok {
		return
	}

	var req services.CompanyRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	company, err := h.companies.Update(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "update_company")
		return
	}

	h.record(r, models.ActionUpdate, company)
	writeData(w, http.StatusOK, company, h.logger)
}

// Delete handles DELETE /api/companies/{cid}
func (h *CompaniesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathCompanyID, h.logger)
	if !ok {
		return
	}

	if err := h.companies.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, h.logger, "delete_company")
		return
	}

	h.activity.Record(r.Context(), models.ActionDelete, "company", id.String(),
		services.ActivitySummary(models.ActionDelete, "company", id.String()), requestMeta(r))
	w.WriteHeader(http.StatusNoContent)
}

// Structure handles POST /api/companies/{cid}/structure
// Responds 202 with the company in processing state.
func (h *CompaniesHandler) Structure(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathCompanyID, h.logger)
	if !ok {
		return
	}

	company, err := h.companies.Structure(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "structure_company")
		return
	}
	writeData(w, http.StatusAccepted, company, h.logger)
}

func (h *CompaniesHandler) record(r *http.Request, action string, c *models.Company) {
	h.activity.Record(r.Context(), action, "company", c.ID.String(),
		services.ActivitySummary(action, "company", c.DisplayName()), requestMeta(r))
}
