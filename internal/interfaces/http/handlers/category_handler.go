// Package handlers exposes the cache-through category reads over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"catalog-backend/internal/domain/category"
	"catalog-backend/internal/service/catalog"
)

// CategoryHandler handles category read requests
type CategoryHandler struct {
	service *catalog.Service
	logger  *zap.Logger
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(service *catalog.Service, logger *zap.Logger) *CategoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryHandler{
		service: service,
		logger:  logger,
	}
}

// Routes mounts the read endpoints on a chi router
func (h *CategoryHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/tree", h.GetTree)
	r.Get("/statistics", h.GetStatistics)
	r.Get("/{categoryID}/breadcrumbs", h.GetBreadcrumbs)
	r.Get("/{categoryID}/children", h.GetChildren)
	r.Get("/{categoryID}/descendants", h.GetDescendants)
	return r
}

// GetTree handles GET /api/categories/tree?filter=active|all
func (h *CategoryHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.filterParam(w, r)
	if !ok {
		return
	}

	tree, err := h.service.GetTree(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"tree": tree})
}

// GetBreadcrumbs handles GET /api/categories/{categoryID}/breadcrumbs
func (h *CategoryHandler) GetBreadcrumbs(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := h.idParam(w, r)
	if !ok {
		return
	}

	crumbs, err := h.service.GetBreadcrumbs(r.Context(), categoryID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"breadcrumbs": crumbs})
}

// GetChildren handles GET /api/categories/{categoryID}/children?filter=active|all
func (h *CategoryHandler) GetChildren(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := h.idParam(w, r)
	if !ok {
		return
	}
	filter, ok := h.filterParam(w, r)
	if !ok {
		return
	}

	children, err := h.service.GetChildren(r.Context(), categoryID, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"children": children})
}

// GetDescendants handles GET /api/categories/{categoryID}/descendants?filter=active|all
func (h *CategoryHandler) GetDescendants(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := h.idParam(w, r)
	if !ok {
		return
	}
	filter, ok := h.filterParam(w, r)
	if !ok {
		return
	}

	descendants, err := h.service.GetDescendants(r.Context(), categoryID, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"descendants": descendants})
}

// GetStatistics handles GET /api/categories/statistics
func (h *CategoryHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStatistics(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

func (h *CategoryHandler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "categoryID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid category id"})
		return 0, false
	}
	return id, true
}

func (h *CategoryHandler) filterParam(w http.ResponseWriter, r *http.Request) (category.Filter, bool) {
	raw := r.URL.Query().Get("filter")
	if raw == "" {
		return category.FilterActive, true
	}
	filter := category.Filter(raw)
	if !filter.Valid() {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "filter must be active or all"})
		return "", false
	}
	return filter, true
}

func (h *CategoryHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	// Cache-layer failures never reach this point; anything here is a source
	// of truth failure.
	h.logger.Error("Category read failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	h.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
}

func (h *CategoryHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("Failed to encode response", zap.Error(err))
	}
}
