// Package notifier consumes order lifecycle events and forwards rendered
// notifications to the notification surface. Delivery is best-effort: the
// engine only guarantees that a fresh read returns the correct status.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ateli/materialflow/internal/domain"
)

type Handler struct {
	notifyURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHandler(notifyURL string, client *http.Client, logger *slog.Logger) *Handler {
	return &Handler{
		notifyURL:  notifyURL,
		httpClient: client,
		logger:     logger,
	}
}

type notification struct {
	ProjectID string `json:"project_id"`
	OrderID   string `json:"order_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// HandleStatusChange processes one order.status.changed event.
func (h *Handler) HandleStatusChange(ctx context.Context, payload []byte) error {
	var event domain.OrderStatusChangedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal status changed event: %w", err)
	}

	h.logger.Info("processing status change",
		"order_id", event.OrderID, "from", event.From, "to", event.To)

	n := notification{
		ProjectID: event.ProjectID,
		OrderID:   event.OrderID,
		Title:     fmt.Sprintf("Order %s: %s", event.OrderNumber, statusLabel(event.To)),
		Body:      fmt.Sprintf("Order %s moved from %s to %s.", event.OrderNumber, event.From, event.To),
	}

	if err := h.send(ctx, n); err != nil {
		return fmt.Errorf("send status notification: %w", err)
	}
	return nil
}

// HandlePaymentCompleted processes one order.payment.completed event.
func (h *Handler) HandlePaymentCompleted(ctx context.Context, payload []byte) error {
	var event domain.PaymentCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal payment completed event: %w", err)
	}

	h.logger.Info("processing payment completion",
		"order_id", event.OrderID, "method", event.Method, "amount", event.AmountPaid.String())

	n := notification{
		ProjectID: event.ProjectID,
		OrderID:   event.OrderID,
		Title:     fmt.Sprintf("Order %s: payment received", event.OrderNumber),
		Body:      fmt.Sprintf("Payment of %s recorded via %s for order %s.", event.AmountPaid.String(), event.Method, event.OrderNumber),
	}

	if err := h.send(ctx, n); err != nil {
		return fmt.Errorf("send payment notification: %w", err)
	}
	return nil
}

func (h *Handler) send(ctx context.Context, n notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.notifyURL+"/notify", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify service returned status %d", resp.StatusCode)
	}
	return nil
}

func statusLabel(s domain.OrderStatus) string {
	switch s {
	case domain.StatusClarificationRequested:
		return "clarification requested"
	case domain.StatusOrderReceived:
		return "order received"
	case domain.StatusPendingConfirmation:
		return "pending confirmation"
	case domain.StatusConfirmed:
		return "confirmed"
	case domain.StatusMaterialLoading:
		return "material loading"
	case domain.StatusDispatched:
		return "dispatched"
	case domain.StatusDelivered:
		return "delivered"
	case domain.StatusPartiallyCompleted:
		return "partially completed"
	case domain.StatusCompleted:
		return "completed"
	case domain.StatusCancelled:
		return "cancelled"
	case domain.StatusOnHold:
		return "on hold"
	default:
		return string(s)
	}
}
