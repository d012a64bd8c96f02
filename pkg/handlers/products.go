package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

// ProductsHandler handles the product catalogue and product knowledge.
type ProductsHandler struct {
	products  services.ProductService
	knowledge services.KnowledgeService
	activity  services.ActivityService
	logger    *zap.Logger
}

// NewProductsHandler creates a new products handler.
func NewProductsHandler(
	products services.ProductService,
	knowledge services.KnowledgeService,
	activity services.ActivityService,
	logger *zap.Logger,
) *ProductsHandler {
	return &ProductsHandler{products: products, knowledge: knowledge, activity: activity, logger: logger}
}

// RegisterRoutes registers the products handler's routes on the given mux.
func (h *ProductsHandler) RegisterRoutes(mux *http.ServeMux, g Guards) {
	mux.HandleFunc("GET /api/product-categories", g.User(h.ListCategories))
	mux.HandleFunc("POST /api/product-categories", g.Admin(h.CreateCategory))
	mux.HandleFunc("PUT /api/product-categories/{catid}", g.Admin(h.UpdateCategory))
	mux.HandleFunc("DELETE /api/product-categories/{catid}", g.Admin(h.DeleteCategory))

	base := "/api/products"
	mux.HandleFunc("GET "+base, g.User(h.List))
	mux.HandleFunc("POST "+base, g.Admin(h.Create))
	mux.HandleFunc("GET "+base+"/{prid}", g.User(h.Get))
	mux.HandleFunc("PUT "+base+"/{prid}", g.Admin(h.Update))
	mux.HandleFunc("DELETE "+base+"/{prid}", g.Admin(h.Delete))

	mux.HandleFunc("GET "+base+"/{prid}/knowledge", g.User(h.ListKnowledge))
	mux.HandleFunc("POST "+base+"/{prid}/knowledge", g.User(h.AddKnowledge))
	mux.HandleFunc("DELETE "+base+"/{prid}/knowledge/{kid}", g.User(h.DeleteKnowledge))
	mux.HandleFunc("POST "+base+"/{prid}/knowledge/{kid}/reprocess", g.User(h.ReprocessKnowledge))
}

// ListCategories handles GET /api/product-categories
func (h *ProductsHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.products.ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger, "list_categories")
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: categories, Total: len(categories)}, h.logger)
}

// CreateCategory handles POST /api/product-categories
func (h *ProductsHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req models.ProductCategory
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	category, err := h.products.CreateCategory(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "create_category")
		return
	}

	h.record(r, models.ActionCreate, "product_category", category.ID, category.Name)
	writeData(w, http.StatusCreated, category, h.logger)
}

// UpdateCategory handles PUT /api/product-categories/{catid}
func (h *ProductsHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathCategoryID, h.logger)
	if !ok {
		return
	}

	var req models.ProductCategory
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	category, err := h.products.UpdateCategory(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "update_category")
		return
	}

	h.record(r, models.ActionUpdate, "product_category", category.ID, category.Name)
	writeData(w, http.StatusOK, category, h.logger)
}

// DeleteCategory handles DELETE /api/product-categories/{catid}
func (h *ProductsHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathCategoryID, h.logger)
	if !ok {
		return
	}

	if err := h.products.DeleteCategory(r.Context(), id); err != nil {
		writeServiceError(w, err, h.logger, "delete_category")
		return
	}

	h.record(r, models.ActionDelete, "product_category", id, id.String())
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/products
// Query: category_id, industry, search, active_only.
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := queryUUID(w, r, "category_id", h.logger)
	if !ok {
		return
	}

	q := r.URL.Query()
	products, err := h.products.List(r.Context(), models.ProductFilter{
		CategoryID: categoryID,
		Industry:   q.Get("industry"),
		Search:     q.Get("search"),
		ActiveOnly: q.Get("active_only") == "true",
	})
	if err != nil {
		writeServiceError(w, err, h.logger, "list_products")
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: products, Total: len(products)}, h.logger)
}

// Get handles GET /api/products/{prid}
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathProductID, h.logger)
	if !ok {
		return
	}

	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "get_product")
		return
	}
	writeData(w, http.StatusOK, product, h.logger)
}

// Create handles POST /api/products
func (h *ProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.Product
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	product, err := h.products.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "create_product")
		return
	}

	h.record(r, models.ActionCreate, "product", product.ID, product.Name)
	writeData(w, http.StatusCreated, product, h.logger)
}

// Update handles PUT /api/products/{prid}
func (h *ProductsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathProductID, h.logger)
	if !ok {
		return
	}

	var req models.Product
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	product, err := h.products.Update(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "update_product")
		return
	}

	h.record(r, models.ActionUpdate, "product", product.ID, product.Name)
	writeData(w, http.StatusOK, product, h.logger)
}

// Delete handles DELETE /api/products/{prid}
func (h *ProductsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePathID(w, r, pathProductID, h.logger)
	if !ok {
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, h.logger, "delete_product")
		return
	}

	h.record(r, models.ActionDelete, "product", id, id.String())
	w.WriteHeader(http.StatusNoContent)
}

// ListKnowledge handles GET /api/products/{prid}/knowledge
func (h *ProductsHandler) ListKnowledge(w http.ResponseWriter, r *http.Request) {
	productID, ok := ParsePathID(w, r, pathProductID, h.logger)
	if !ok {
		return
	}

	chunks, err := h.knowledge.List(r.Context(), productID)
	if err != nil {
		writeServiceError(w, err, h.logger, "list_knowledge")
		return
	}
	writeData(w, http.StatusOK, ListResponse{Items: chunks, Total: len(chunks)}, h.logger)
}

// AddKnowledge handles POST /api/products/{prid}/knowledge
// Responds 202: chunks are structured in the background.
func (h *ProductsHandler) AddKnowledge(w http.ResponseWriter, r *http.Request) {
	productID, ok := ParsePathID(w, r, pathProductID, h.logger)
	if !ok {
		return
	}

	var req services.AddKnowledgeRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	chunks, err := h.knowledge.Add(r.Context(), productID, &req)
	if err != nil {
		writeServiceError(w, err, h.logger, "add_knowledge")
		return
	}

	h.record(r, models.ActionCreate, "product_knowledge", productID, req.Title)
	writeData(w, http.StatusAccepted, ListResponse{Items: chunks, Total: len(chunks)}, h.logger)
}

// DeleteKnowledge handles DELETE /api/products/{prid}/knowledge/{kid}
func (h *ProductsHandler) DeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	productID, ok := ParsePathID(w, r, pathProductID, h.logger)
	if !ok {
		return
	}
	id, ok := ParsePathID(w, r, pathKnowledgeID, h.logger)
	if !ok {
		return
	}

	if err := h.knowledge.Delete(r.Context(), productID, id); err != nil {
		writeServiceError(w, err, h.logger, "delete_knowledge")
		return
	}

	h.record(r, models.ActionDelete, "product_knowledge", id, id.String())
	w.WriteHeader(http.StatusNoContent)
}

// ReprocessKnowledge handles POST /api/products/{prid}/knowledge/{kid}/reprocess
func (h *ProductsHandler) ReprocessKnowledge(w http.ResponseWriter, r *http.Request) {
	productID, ok := ParsePathID(w, r, pathProductID, h.logger)
	if !ok {
		return
	}
	id, ok := ParsePathID(w, r, pathKnowledgeID, h.logger)
	if !ok {
		return
	}

	chunk, err := h.knowledge.Reprocess(r.Context(), productID, id)
	if err != nil {
		writeServiceError(w, err, h.logger, "reprocess_knowledge")
		return
	}
	writeData(w, http.StatusAccepted, chunk, h.logger)
}

func (h *ProductsHandler) record(r *http.Request, action, targetType string, id uuid.UUID, label string) {
	h.activity.Record(r.Context(), action, targetType, id.String(),
		services.ActivitySummary(action, targetType, label), requestMeta(r))
}
