package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidApprover     = errors.New("approver is not listed on the order")
	ErrAlreadyDecided      = errors.New("approval has already been decided")
	ErrOrderNotDeliverable = errors.New("order has not reached delivery")
	ErrItemNotFound        = errors.New("order item not found")
	ErrOverPayment         = errors.New("payment exceeds order total")
	ErrValidation          = errors.New("invalid order payload")
	ErrInvalidTransition   = errors.New("invalid lifecycle transition")
)

// DurableWriteError wraps a record-store failure. By the time a caller sees
// one, the optimistic in-memory mutation has already been rolled back; the
// action is safe to retry as-is.
type DurableWriteError struct {
	Err error
}

func (e *DurableWriteError) Error() string {
	return fmt.Sprintf("durable write failed: %v", e.Err)
}

func (e *DurableWriteError) Unwrap() error {
	return e.Err
}
