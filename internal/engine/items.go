package engine

import (
	"context"
	"fmt"

	"github.com/ateli/materialflow/internal/domain"
)

// ConfirmItem acknowledges receipt of one line item. It is only valid once
// the order has reached the delivered stage, and it is idempotent:
// confirming an already-confirmed item succeeds without a durable write, so
// a retry after a network failure has no side effects.
func (s *Store) ConfirmItem(ctx context.Context, orderID, itemID, confirmerID string) (domain.Order, error) {
	return s.mutate(ctx, orderID, confirmerID, func(o *domain.Order) error {
		if st := domain.DeriveStatus(o); !st.AtOrAfter(domain.StatusDelivered) {
			return fmt.Errorf("%w: status is %s", domain.ErrOrderNotDeliverable, st)
		}

		item := o.Item(itemID)
		if item == nil {
			return fmt.Errorf("%w: %s", domain.ErrItemNotFound, itemID)
		}
		if item.IsConfirmed {
			return errNoop
		}

		t := s.now().UTC()
		item.IsConfirmed = true
		item.ConfirmedBy = confirmerID
		item.ConfirmedAt = &t
		return nil
	})
}
