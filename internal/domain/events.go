package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lifecycle events published to the notification surface. Delivery is
// best-effort; consumers must treat status here as a hint and re-read the
// order for the authoritative value.

type OrderStatusChangedEvent struct {
	OrderID     string      `json:"order_id"`
	ProjectID   string      `json:"project_id"`
	OrderNumber string      `json:"order_number"`
	From        OrderStatus `json:"from"`
	To          OrderStatus `json:"to"`
	ActorID     string      `json:"actor_id,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

type PaymentCompletedEvent struct {
	OrderID     string          `json:"order_id"`
	ProjectID   string          `json:"project_id"`
	OrderNumber string          `json:"order_number"`
	Method      PaymentMethod   `json:"method"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	PaidBy      string          `json:"paid_by,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}
