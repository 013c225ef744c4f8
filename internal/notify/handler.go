// Package notify is the notification surface: it accepts rendered
// notifications and hands them to whatever channel is configured. The stub
// here logs the delivery, which is all the engine's contract requires.
package notify

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

type notifyRequest struct {
	ProjectID string `json:"project_id"`
	OrderID   string `json:"order_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

type notifyResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		h.writeError(w, http.StatusBadRequest, "missing title")
		return
	}

	h.logger.Info("notification delivered",
		"project_id", req.ProjectID, "order_id", req.OrderID, "title", req.Title)

	h.writeJSON(w, http.StatusOK, notifyResponse{Status: "delivered"})
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
