package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ApprovalAction string

const (
	ApprovalPending  ApprovalAction = "pending"
	ApprovalApproved ApprovalAction = "approved"
	ApprovalRejected ApprovalAction = "rejected"
)

type PaymentMethod string

const (
	PayOnDelivery PaymentMethod = "pay_on_delivery"
	PayNow        PaymentMethod = "pay_now"
	PayWallet     PaymentMethod = "wallet"
	PayLink       PaymentMethod = "payment_link"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPartial   PaymentStatus = "partial"
	PaymentCompleted PaymentStatus = "completed"
)

// DeliveryOutcome is the operator's verdict recorded when an order is marked
// delivered. It distinguishes a clean delivery from one with exceptions,
// which is what lets DeriveStatus pick partially_completed over delivered.
type DeliveryOutcome string

const (
	OutcomeNone        DeliveryOutcome = ""
	OutcomeCompleted   DeliveryOutcome = "completed"
	OutcomePartial     DeliveryOutcome = "partially_completed"
	OutcomeRescheduled DeliveryOutcome = "rescheduled"
)

type OrderItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	IsConfirmed bool            `json:"is_confirmed"`
	ConfirmedBy string          `json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty"`
}

type OrderApproval struct {
	UserID    string         `json:"user_id"`
	UserName  string         `json:"user_name"`
	Action    ApprovalAction `json:"action"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Comment   string         `json:"comment,omitempty"`
}

type PaymentInfo struct {
	Method        PaymentMethod   `json:"method"`
	Status        PaymentStatus   `json:"status"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	TransactionID string          `json:"transaction_id,omitempty"`
	PaidBy        string          `json:"paid_by,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
}

type DriverInfo struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	VehicleNumber string `json:"vehicle_number,omitempty"`
}

// Order is the aggregate the engine operates on. Status is never written
// directly by callers: it is recomputed from the other fields via
// DeriveStatus after every mutation, so stale concurrent writes self-heal
// on the next refresh.
type Order struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	OrderNumber string          `json:"order_number"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      OrderStatus     `json:"status"`
	Approvals   []OrderApproval `json:"approvals"`

	CreatedBy     string `json:"created_by"`
	CreatedByName string `json:"created_by_name,omitempty"`
	InitiatedBy   string `json:"initiated_by"`

	// Recorded lifecycle facts. The milestone timestamps are set by operator
	// actions and feed status derivation; they are never cleared.
	NeedsClarification bool            `json:"needs_clarification,omitempty"`
	LoadingStartedAt   *time.Time      `json:"loading_started_at,omitempty"`
	DispatchedAt       *time.Time      `json:"dispatched_at,omitempty"`
	DeliveredAt        *time.Time      `json:"delivered_at,omitempty"`
	DeliveryOutcome    DeliveryOutcome `json:"delivery_outcome,omitempty"`

	// Explicit administrative overrides, not derived.
	Cancelled bool `json:"cancelled,omitempty"`
	OnHold    bool `json:"on_hold,omitempty"`

	DriverInfo *DriverInfo  `json:"driver_info,omitempty"`
	Payment    *PaymentInfo `json:"payment,omitempty"`
	Notes      string       `json:"notes,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// RecomputeTotals restores the money invariants: every item's total is
// quantity times unit price, and the order total is the sum over items.
func (o *Order) RecomputeTotals() {
	total := decimal.Zero
	for i := range o.Items {
		o.Items[i].TotalPrice = o.Items[i].UnitPrice.Mul(decimal.NewFromInt(int64(o.Items[i].Quantity)))
		total = total.Add(o.Items[i].TotalPrice)
	}
	o.TotalAmount = total
}

// Item returns a pointer into the live items slice, or nil.
func (o *Order) Item(itemID string) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}

// Approval returns a pointer into the live approvals slice, or nil.
func (o *Order) Approval(userID string) *OrderApproval {
	for i := range o.Approvals {
		if o.Approvals[i].UserID == userID {
			return &o.Approvals[i]
		}
	}
	return nil
}

// Clone deep-copies the order. The engine snapshots before every optimistic
// mutation and hands copies to callers, so nothing outside the store can
// alias the live aggregate.
func (o *Order) Clone() *Order {
	c := *o

	c.Items = make([]OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	for i := range c.Items {
		c.Items[i].ConfirmedAt = cloneTime(o.Items[i].ConfirmedAt)
	}

	c.Approvals = make([]OrderApproval, len(o.Approvals))
	copy(c.Approvals, o.Approvals)
	for i := range c.Approvals {
		c.Approvals[i].Timestamp = cloneTime(o.Approvals[i].Timestamp)
	}

	if o.Payment != nil {
		p := *o.Payment
		p.PaidAt = cloneTime(o.Payment.PaidAt)
		c.Payment = &p
	}
	if o.DriverInfo != nil {
		d := *o.DriverInfo
		c.DriverInfo = &d
	}

	c.LoadingStartedAt = cloneTime(o.LoadingStartedAt)
	c.DispatchedAt = cloneTime(o.DispatchedAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	c.ConfirmedAt = cloneTime(o.ConfirmedAt)

	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
