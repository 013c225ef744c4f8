// Package api exposes the order lifecycle engine over HTTP: one engine
// Store per project, every mutation routed through the store's
// optimistic-update discipline, lifecycle events published best-effort.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ateli/materialflow/internal/domain"
	"github.com/ateli/materialflow/internal/draft"
	"github.com/ateli/materialflow/internal/engine"
)

// Publisher is the producing side of the notification surface. Both topic
// producers satisfy it; tests swap in a recorder.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	stores          *Manager
	statusProducer  Publisher
	paymentProducer Publisher
	logger          *slog.Logger
}

func NewHandler(stores *Manager, statusProducer, paymentProducer Publisher, logger *slog.Logger) *Handler {
	return &Handler{
		stores:          stores,
		statusProducer:  statusProducer,
		paymentProducer: paymentProducer,
		logger:          logger,
	}
}

type approverPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type createOrderRequest struct {
	Items              []draft.Item      `json:"items"`
	CreatedBy          string            `json:"created_by"`
	CreatedByName      string            `json:"created_by_name"`
	InitiatedBy        string            `json:"initiated_by"`
	Approvers          []approverPayload `json:"approvers"`
	Notes              string            `json:"notes"`
	NeedsClarification bool              `json:"needs_clarification"`
}

type createOrderResponse struct {
	Order        domain.Order `json:"order"`
	Confirmation string       `json:"confirmation"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items, err := draft.Items(draft.Draft{Items: req.Items})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	approvers := make([]engine.Approver, 0, len(req.Approvers))
	for _, a := range req.Approvers {
		approvers = append(approvers, engine.Approver{ID: a.ID, Name: a.Name})
	}

	order, err := store.Create(r.Context(), engine.CreateOrderInput{
		Items:              items,
		CreatedBy:          req.CreatedBy,
		CreatedByName:      req.CreatedByName,
		InitiatedBy:        req.InitiatedBy,
		Approvers:          approvers,
		Notes:              req.Notes,
		NeedsClarification: req.NeedsClarification,
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.logger.Info("order created", "order_id", order.ID, "project_id", order.ProjectID)
	h.writeJSON(w, http.StatusCreated, createOrderResponse{
		Order:        order,
		Confirmation: draft.Confirmation(order),
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, store.Orders())
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	order, found := store.Get(r.PathValue("id"))
	if !found {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

type decisionRequest struct {
	ApproverID string `json:"approver_id"`
	Comment    string `json:"comment"`
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, approve bool) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var req decisionRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.mutateAndPublish(w, r, store, req.ApproverID, func(ctx context.Context, orderID string) (domain.Order, error) {
		if approve {
			return store.Approve(ctx, orderID, req.ApproverID, req.Comment)
		}
		return store.Reject(ctx, orderID, req.ApproverID, req.Comment)
	})
}

type confirmItemRequest struct {
	ConfirmerID string `json:"confirmer_id"`
}

func (h *Handler) HandleConfirmItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var req confirmItemRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	itemID := r.PathValue("itemId")
	h.mutateAndPublish(w, r, store, req.ConfirmerID, func(ctx context.Context, orderID string) (domain.Order, error) {
		return store.ConfirmItem(ctx, orderID, itemID, req.ConfirmerID)
	})
}

type paymentRequest struct {
	Method     domain.PaymentMethod `json:"method"`
	AmountPaid decimal.Decimal      `json:"amount_paid"`
	PayerID    string               `json:"payer_id"`
}

func (h *Handler) HandleRecordPayment(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var req paymentRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	orderID := r.PathValue("id")
	order, err := store.RecordPayment(r.Context(), orderID, req.Method, req.AmountPaid, req.PayerID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	if order.Payment != nil && order.Payment.Status == domain.PaymentCompleted {
		h.publishPaymentCompleted(r.Context(), order)
	}

	h.logger.Info("payment recorded", "order_id", order.ID, "amount", req.AmountPaid.String())
	h.writeJSON(w, http.StatusOK, order)
}

type actorRequest struct {
	ActorID string `json:"actor_id"`
}

func (h *Handler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	h.actorOp(w, r, func(store *engine.Store, ctx context.Context, orderID, actor string) (domain.Order, error) {
		return store.AcknowledgeReceipt(ctx, orderID, actor)
	})
}

func (h *Handler) HandleStartLoading(w http.ResponseWriter, r *http.Request) {
	h.actorOp(w, r, func(store *engine.Store, ctx context.Context, orderID, actor string) (domain.Order, error) {
		return store.StartLoading(ctx, orderID, actor)
	})
}

type dispatchRequest struct {
	ActorID string            `json:"actor_id"`
	Driver  domain.DriverInfo `json:"driver"`
}

func (h *Handler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var req dispatchRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.mutateAndPublish(w, r, store, req.ActorID, func(ctx context.Context, orderID string) (domain.Order, error) {
		return store.Dispatch(ctx, orderID, req.Driver, req.ActorID)
	})
}

type deliveredRequest struct {
	ActorID string                 `json:"actor_id"`
	Outcome domain.DeliveryOutcome `json:"outcome"`
}

func (h *Handler) HandleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var req deliveredRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.mutateAndPublish(w, r, store, req.ActorID, func(ctx context.Context, orderID string) (domain.Order, error) {
		return store.MarkDelivered(ctx, orderID, req.Outcome, req.ActorID)
	})
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.actorOp(w, r, func(store *engine.Store, ctx context.Context, orderID, actor string) (domain.Order, error) {
		return store.Cancel(ctx, orderID, actor)
	})
}

func (h *Handler) HandleHold(w http.ResponseWriter, r *http.Request) {
	h.actorOp(w, r, func(store *engine.Store, ctx context.Context, orderID, actor string) (domain.Order, error) {
		return store.Hold(ctx, orderID, actor)
	})
}

func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.actorOp(w, r, func(store *engine.Store, ctx context.Context, orderID, actor string) (domain.Order, error) {
		return store.Resume(ctx, orderID, actor)
	})
}

func (h *Handler) actorOp(w http.ResponseWriter, r *http.Request, op func(store *engine.Store, ctx context.Context, orderID, actor string) (domain.Order, error)) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var req actorRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.mutateAndPublish(w, r, store, req.ActorID, func(ctx context.Context, orderID string) (domain.Order, error) {
		return op(store, ctx, orderID, req.ActorID)
	})
}

// mutateAndPublish runs one mutation, emits a status-change event if the
// derived status moved, and writes the updated order back to the caller.
func (h *Handler) mutateAndPublish(w http.ResponseWriter, r *http.Request, store *engine.Store, actorID string, op func(ctx context.Context, orderID string) (domain.Order, error)) {
	orderID := r.PathValue("id")

	before, _ := store.Get(orderID)

	order, err := op(r.Context(), orderID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	if order.Status != before.Status {
		h.publishStatusChange(r.Context(), before.Status, order, actorID)
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) publishStatusChange(ctx context.Context, from domain.OrderStatus, order domain.Order, actorID string) {
	if h.statusProducer == nil {
		return
	}

	event := domain.OrderStatusChangedEvent{
		OrderID:     order.ID,
		ProjectID:   order.ProjectID,
		OrderNumber: order.OrderNumber,
		From:        from,
		To:          order.Status,
		ActorID:     actorID,
		Timestamp:   order.UpdatedAt,
	}
	if err := h.statusProducer.Publish(ctx, order.ID, event); err != nil {
		h.logger.Error("failed to publish status change", "error", err, "order_id", order.ID)
	}
}

func (h *Handler) publishPaymentCompleted(ctx context.Context, order domain.Order) {
	if h.paymentProducer == nil || order.Payment == nil {
		return
	}

	event := domain.PaymentCompletedEvent{
		OrderID:     order.ID,
		ProjectID:   order.ProjectID,
		OrderNumber: order.OrderNumber,
		Method:      order.Payment.Method,
		AmountPaid:  order.Payment.AmountPaid,
		PaidBy:      order.Payment.PaidBy,
		Timestamp:   order.UpdatedAt,
	}
	if err := h.paymentProducer.Publish(ctx, order.ID, event); err != nil {
		h.logger.Error("failed to publish payment completion", "error", err, "order_id", order.ID)
	}
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*engine.Store, bool) {
	projectID := r.PathValue("projectId")
	if projectID == "" {
		h.writeError(w, http.StatusBadRequest, "missing project id")
		return nil, false
	}

	store, err := h.stores.Store(r.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to load project orders", "error", err, "project_id", projectID)
		h.writeError(w, http.StatusBadGateway, "record store unavailable")
		return nil, false
	}
	return store, true
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	var dwe *domain.DurableWriteError
	switch {
	case errors.Is(err, domain.ErrValidation):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrInvalidApprover):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyDecided),
		errors.Is(err, domain.ErrOrderNotDeliverable),
		errors.Is(err, domain.ErrInvalidTransition):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrOverPayment):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &dwe):
		h.logger.Error("durable write failed", "error", err)
		h.writeError(w, http.StatusBadGateway, "record store unavailable, change rolled back")
	default:
		h.logger.Error("unexpected engine error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
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
