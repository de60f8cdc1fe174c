package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"catalog-backend/internal/domain/category"
	"catalog-backend/internal/invalidation"
)

// InvalidationHandler is the unit-of-work boundary for external writers: the
// persistence layer reports every create/update/delete/move here after the
// mutation is durably committed. One request is one unit of work; the batched
// clear runs synchronously before the response is written.
type InvalidationHandler struct {
	aggregator *invalidation.Aggregator
	logger     *zap.Logger
}

// NewInvalidationHandler creates a new invalidation handler
func NewInvalidationHandler(aggregator *invalidation.Aggregator, logger *zap.Logger) *InvalidationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvalidationHandler{
		aggregator: aggregator,
		logger:     logger,
	}
}

// Routes mounts the invalidation endpoint on a chi router
func (h *InvalidationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.PostInvalidations)
	return r
}

// NodeChange reports one committed mutation of a category node
type NodeChange struct {
	Node           category.Node `json:"node"`
	PreviousRootID *int64        `json:"previous_root_id,omitempty"`
}

// invalidationRequest batches the changes of one committed unit of work
type invalidationRequest struct {
	Changes []NodeChange `json:"changes"`
}

// PostInvalidations handles POST /api/invalidations
func (h *InvalidationHandler) PostInvalidations(w http.ResponseWriter, r *http.Request) {
	var req invalidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"error": "invalid request body"})
		return
	}

	uow := h.aggregator.NewUnitOfWork(nil)
	for i := range req.Changes {
		change := &req.Changes[i]
		uow.OnNodeChanged(r.Context(), &change.Node, change.PreviousRootID)
	}
	pending := uow.Pending()
	uow.Complete(r.Context())

	h.logger.Debug("Processed invalidation unit of work",
		zap.Int("changes", len(req.Changes)),
		zap.Int64s("root_ids", pending),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"root_ids": pending})
}
