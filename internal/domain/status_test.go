package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func ts(t *testing.T) *time.Time {
	t.Helper()
	v := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return &v
}

func approvedOrder(t *testing.T) *Order {
	t.Helper()
	return &Order{
		ID: "o1",
		Items: []OrderItem{
			{ID: "i1", Name: "Cement", Quantity: 10, UnitPrice: decimal.NewFromInt(450)},
			{ID: "i2", Name: "Sand", Quantity: 5, UnitPrice: decimal.NewFromInt(120)},
		},
		Approvals: []OrderApproval{
			{UserID: "u1", Action: ApprovalApproved, Timestamp: ts(t)},
			{UserID: "u2", Action: ApprovalApproved, Timestamp: ts(t)},
		},
	}
}

func TestDeriveStatus(t *testing.T) {
	t.Run("no approvals means order received", func(t *testing.T) {
		o := approvedOrder(t)
		o.Approvals = nil

		if got := DeriveStatus(o); got != StatusOrderReceived {
			t.Errorf("expected %s, got %s", StatusOrderReceived, got)
		}
	})

	t.Run("any pending approval means pending confirmation", func(t *testing.T) {
		o := approvedOrder(t)
		o.Approvals[1].Action = ApprovalPending

		if got := DeriveStatus(o); got != StatusPendingConfirmation {
			t.Errorf("expected %s, got %s", StatusPendingConfirmation, got)
		}
	})

	t.Run("all approved means confirmed", func(t *testing.T) {
		if got := DeriveStatus(approvedOrder(t)); got != StatusConfirmed {
			t.Errorf("expected %s, got %s", StatusConfirmed, got)
		}
	})

	t.Run("single rejection vetoes even with pending entries", func(t *testing.T) {
		o := approvedOrder(t)
		o.Approvals[0].Action = ApprovalPending
		o.Approvals[1].Action = ApprovalRejected

		if got := DeriveStatus(o); got != StatusCancelled {
			t.Errorf("expected %s, got %s", StatusCancelled, got)
		}
	})

	t.Run("rejection outranks hold and clarification", func(t *testing.T) {
		o := approvedOrder(t)
		o.Approvals[0].Action = ApprovalRejected
		o.OnHold = true
		o.NeedsClarification = true

		if got := DeriveStatus(o); got != StatusCancelled {
			t.Errorf("expected %s, got %s", StatusCancelled, got)
		}
	})

	t.Run("explicit cancellation always wins", func(t *testing.T) {
		o := approvedOrder(t)
		o.Cancelled = true
		o.DeliveredAt = ts(t)

		if got := DeriveStatus(o); got != StatusCancelled {
			t.Errorf("expected %s, got %s", StatusCancelled, got)
		}
	})

	t.Run("hold outranks clarification and milestones", func(t *testing.T) {
		o := approvedOrder(t)
		o.OnHold = true
		o.NeedsClarification = true
		o.DispatchedAt = ts(t)

		if got := DeriveStatus(o); got != StatusOnHold {
			t.Errorf("expected %s, got %s", StatusOnHold, got)
		}
	})

	t.Run("clarification outranks the approval ledger", func(t *testing.T) {
		o := approvedOrder(t)
		o.NeedsClarification = true

		if got := DeriveStatus(o); got != StatusClarificationRequested {
			t.Errorf("expected %s, got %s", StatusClarificationRequested, got)
		}
	})

	t.Run("milestones walk loading then dispatched then delivered", func(t *testing.T) {
		o := approvedOrder(t)

		o.LoadingStartedAt = ts(t)
		if got := DeriveStatus(o); got != StatusMaterialLoading {
			t.Errorf("expected %s, got %s", StatusMaterialLoading, got)
		}

		o.DispatchedAt = ts(t)
		if got := DeriveStatus(o); got != StatusDispatched {
			t.Errorf("expected %s, got %s", StatusDispatched, got)
		}

		o.DeliveredAt = ts(t)
		if got := DeriveStatus(o); got != StatusDelivered {
			t.Errorf("expected %s, got %s", StatusDelivered, got)
		}
	})

	t.Run("all items confirmed after delivery means completed", func(t *testing.T) {
		o := approvedOrder(t)
		o.DeliveredAt = ts(t)
		for i := range o.Items {
			o.Items[i].IsConfirmed = true
		}

		if got := DeriveStatus(o); got != StatusCompleted {
			t.Errorf("expected %s, got %s", StatusCompleted, got)
		}
	})

	t.Run("some confirmed with partial outcome means partially completed", func(t *testing.T) {
		o := approvedOrder(t)
		o.DeliveredAt = ts(t)
		o.DeliveryOutcome = OutcomePartial
		o.Items[0].IsConfirmed = true

		if got := DeriveStatus(o); got != StatusPartiallyCompleted {
			t.Errorf("expected %s, got %s", StatusPartiallyCompleted, got)
		}
	})

	t.Run("some confirmed without partial outcome stays delivered", func(t *testing.T) {
		o := approvedOrder(t)
		o.DeliveredAt = ts(t)
		o.Items[0].IsConfirmed = true

		if got := DeriveStatus(o); got != StatusDelivered {
			t.Errorf("expected %s, got %s", StatusDelivered, got)
		}
	})

	t.Run("approval order does not change the result", func(t *testing.T) {
		a := approvedOrder(t)
		b := approvedOrder(t)
		b.Approvals[0], b.Approvals[1] = b.Approvals[1], b.Approvals[0]

		if DeriveStatus(a) != DeriveStatus(b) {
			t.Errorf("derivation depends on approval order: %s vs %s", DeriveStatus(a), DeriveStatus(b))
		}
	})
}

func TestOrderStatus_AtOrAfter(t *testing.T) {
	cases := []struct {
		status OrderStatus
		stage  OrderStatus
		want   bool
	}{
		{StatusConfirmed, StatusConfirmed, true},
		{StatusDispatched, StatusConfirmed, true},
		{StatusCompleted, StatusDelivered, true},
		{StatusPartiallyCompleted, StatusDelivered, true},
		{StatusPendingConfirmation, StatusConfirmed, false},
		{StatusCancelled, StatusOrderReceived, false},
		{StatusOnHold, StatusOrderReceived, false},
	}
	for _, tc := range cases {
		if got := tc.status.AtOrAfter(tc.stage); got != tc.want {
			t.Errorf("%s.AtOrAfter(%s) = %v, want %v", tc.status, tc.stage, got, tc.want)
		}
	}
}

func TestOrderStatus_Terminal(t *testing.T) {
	for _, s := range []OrderStatus{StatusCancelled, StatusCompleted, StatusPartiallyCompleted} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []OrderStatus{StatusOrderReceived, StatusDelivered, StatusOnHold} {
		if s.Terminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}
}
