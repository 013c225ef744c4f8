package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ateli/materialflow/internal/domain"
)

// RecordPayment attaches a payment record to the order. Payment and
// fulfillment are independent axes: recording a payment never moves the
// lifecycle status, and an order can complete with payment still pending.
func (s *Store) RecordPayment(ctx context.Context, orderID string, method domain.PaymentMethod, amountPaid decimal.Decimal, payerID string) (domain.Order, error) {
	return s.mutate(ctx, orderID, payerID, func(o *domain.Order) error {
		if !amountPaid.IsPositive() {
			return fmt.Errorf("%w: payment amount must be positive", domain.ErrValidation)
		}
		if amountPaid.GreaterThan(o.TotalAmount) {
			return fmt.Errorf("%w: %s paid against total %s",
				domain.ErrOverPayment, amountPaid.String(), o.TotalAmount.String())
		}
		if o.Payment != nil && o.Payment.Status == domain.PaymentCompleted {
			return fmt.Errorf("%w: payment already completed", domain.ErrInvalidTransition)
		}

		status := domain.PaymentPartial
		if amountPaid.Equal(o.TotalAmount) {
			status = domain.PaymentCompleted
		}

		t := s.now().UTC()
		o.Payment = &domain.PaymentInfo{
			Method:     method,
			Status:     status,
			AmountPaid: amountPaid,
			PaidBy:     payerID,
			PaidAt:     &t,
		}
		return nil
	})
}
