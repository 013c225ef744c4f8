package domain

type OrderStatus string

const (
	StatusClarificationRequested OrderStatus = "clarification_requested"
	StatusOrderReceived          OrderStatus = "order_received"
	StatusPendingConfirmation    OrderStatus = "pending_confirmation"
	StatusConfirmed              OrderStatus = "confirmed"
	StatusMaterialLoading        OrderStatus = "material_loading"
	StatusDispatched             OrderStatus = "dispatched"
	StatusDelivered              OrderStatus = "delivered"
	StatusPartiallyCompleted     OrderStatus = "partially_completed"
	StatusCompleted              OrderStatus = "completed"
	StatusCancelled              OrderStatus = "cancelled"
	StatusOnHold                 OrderStatus = "on_hold"
)

// stageRank orders the mainline stages. Side branches (cancelled, on_hold)
// and the two completion variants sit outside the linear progression and
// rank as delivered-or-later where it matters.
var stageRank = map[OrderStatus]int{
	StatusClarificationRequested: 0,
	StatusOrderReceived:          1,
	StatusPendingConfirmation:    2,
	StatusConfirmed:              3,
	StatusMaterialLoading:        4,
	StatusDispatched:             5,
	StatusDelivered:              6,
	StatusPartiallyCompleted:     7,
	StatusCompleted:              7,
}

// AtOrAfter reports whether s has reached the given mainline stage.
// Cancelled and on-hold orders have left the mainline and report false.
func (s OrderStatus) AtOrAfter(stage OrderStatus) bool {
	r, ok := stageRank[s]
	if !ok {
		return false
	}
	return r >= stageRank[stage]
}

func (s OrderStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusPartiallyCompleted
}

// DeriveStatus computes the lifecycle stage from the order's recorded facts.
// It is the only legitimate writer of Order.Status besides explicit
// cancellation/hold, and it is deliberately order-insensitive: two sessions
// applying the same approvals in different orders converge on the same
// status.
//
// Precedence, highest first:
//  1. explicit cancellation, or any rejected approval (single-veto rule)
//  2. explicit hold
//  3. clarification still outstanding
//  4. approval ledger not initialized / not unanimous
//  5. furthest fulfillment milestone, with the delivered-stage branch into
//     completed / partially_completed driven by item confirmations and the
//     recorded delivery outcome
func DeriveStatus(o *Order) OrderStatus {
	if o.Cancelled {
		return StatusCancelled
	}
	for i := range o.Approvals {
		if o.Approvals[i].Action == ApprovalRejected {
			return StatusCancelled
		}
	}
	if o.OnHold {
		return StatusOnHold
	}
	if o.NeedsClarification {
		return StatusClarificationRequested
	}
	if len(o.Approvals) == 0 {
		return StatusOrderReceived
	}
	for i := range o.Approvals {
		if o.Approvals[i].Action == ApprovalPending {
			return StatusPendingConfirmation
		}
	}

	// Unanimously approved; walk the fulfillment milestones.
	if o.DeliveredAt != nil {
		confirmed := 0
		for i := range o.Items {
			if o.Items[i].IsConfirmed {
				confirmed++
			}
		}
		switch {
		case len(o.Items) > 0 && confirmed == len(o.Items):
			return StatusCompleted
		case confirmed > 0 && o.DeliveryOutcome == OutcomePartial:
			return StatusPartiallyCompleted
		default:
			return StatusDelivered
		}
	}
	if o.DispatchedAt != nil {
		return StatusDispatched
	}
	if o.LoadingStartedAt != nil {
		return StatusMaterialLoading
	}
	return StatusConfirmed
}
