package recordstore

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ateli/materialflow/internal/domain"
)

// AttributionHeader carries the display name of the actor behind an upsert.
const AttributionHeader = "X-Updated-By"

type Handler struct {
	repo   *Repository
	logger *slog.Logger
}

func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectId")
	if projectID == "" {
		h.writeError(w, http.StatusBadRequest, "missing project id")
		return
	}

	orders, err := h.repo.ListByProject(r.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "project_id", projectID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("orders listed", "project_id", projectID, "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleUpsertOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var order domain.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if order.ID != id {
		h.writeError(w, http.StatusBadRequest, "order id does not match path")
		return
	}
	if order.ProjectID == "" {
		h.writeError(w, http.StatusBadRequest, "missing project id")
		return
	}

	updatedBy := r.Header.Get(AttributionHeader)

	if err := h.repo.Upsert(r.Context(), &order, updatedBy); err != nil {
		h.logger.Error("failed to upsert order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("order upserted", "order_id", id, "project_id", order.ProjectID, "status", order.Status, "updated_by", updatedBy)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
