package engine

import (
	"context"
	"fmt"

	"github.com/ateli/materialflow/internal/domain"
)

// Operator and administrative actions. Fulfillment milestones are recorded
// facts, not status writes: each one validates that the order sits exactly
// on the preceding stage, then Status is re-derived from the full record.

// AcknowledgeReceipt clears an outstanding clarification request. Calling
// it on an order that needs none is a no-op success.
func (s *Store) AcknowledgeReceipt(ctx context.Context, orderID, actor string) (domain.Order, error) {
	return s.mutate(ctx, orderID, actor, func(o *domain.Order) error {
		if !o.NeedsClarification {
			return errNoop
		}
		o.NeedsClarification = false
		return nil
	})
}

// StartLoading marks the material-loading milestone.
func (s *Store) StartLoading(ctx context.Context, orderID, actor string) (domain.Order, error) {
	return s.mutate(ctx, orderID, actor, func(o *domain.Order) error {
		if err := requireStage(o, domain.StatusConfirmed); err != nil {
			return err
		}
		t := s.now().UTC()
		o.LoadingStartedAt = &t
		return nil
	})
}

// Dispatch marks the dispatch milestone and attaches driver details.
func (s *Store) Dispatch(ctx context.Context, orderID string, driver domain.DriverInfo, actor string) (domain.Order, error) {
	return s.mutate(ctx, orderID, actor, func(o *domain.Order) error {
		if err := requireStage(o, domain.StatusMaterialLoading); err != nil {
			return err
		}
		t := s.now().UTC()
		o.DispatchedAt = &t
		o.DriverInfo = &driver
		return nil
	})
}

// MarkDelivered records the delivery milestone and the operator's outcome.
// OutcomePartial is the delivered-with-exceptions flag that steers the
// derived status toward partially_completed once some items are confirmed.
func (s *Store) MarkDelivered(ctx context.Context, orderID string, outcome domain.DeliveryOutcome, actor string) (domain.Order, error) {
	return s.mutate(ctx, orderID, actor, func(o *domain.Order) error {
		if err := requireStage(o, domain.StatusDispatched); err != nil {
			return err
		}
		t := s.now().UTC()
		o.DeliveredAt = &t
		o.DeliveryOutcome = outcome
		return nil
	})
}

// Cancel is the explicit administrative cancellation. It overrides
// derivation and is terminal.
func (s *Store) Cancel(ctx context.Context, orderID, actor string) (domain.Order, error) {
	return s.mutate(ctx, orderID, actor, func(o *domain.Order) error {
		if st := domain.DeriveStatus(o); st.Terminal() {
			return fmt.Errorf("%w: cannot cancel a %s order", domain.ErrInvalidTransition, st)
		}
		o.Cancelled = true
		return nil
	})
}

// Hold pauses a non-terminal order.
func (s *Store) Hold(ctx context.Context, orderID, actor string) (domain.Order, error) {
	return s.mutate(ctx, orderID, actor, func(o *domain.Order) error {
		if st := domain.DeriveStatus(o); st.Terminal() {
			return fmt.Errorf("%w: cannot hold a %s order", domain.ErrInvalidTransition, st)
		}
		o.OnHold = true
		return nil
	})
}

// Resume lifts a hold. The previous stage is not stored anywhere: clearing
// the flag is enough, because derivation recomputes it from the recorded
// facts.
func (s *Store) Resume(ctx context.Context, orderID, actor string) (domain.Order, error) {
	return s.mutate(ctx, orderID, actor, func(o *domain.Order) error {
		if !o.OnHold {
			return errNoop
		}
		o.OnHold = false
		return nil
	})
}

// SetNotes updates the free-form notes attached to the order.
func (s *Store) SetNotes(ctx context.Context, orderID, notes, actor string) (domain.Order, error) {
	return s.mutate(ctx, orderID, actor, func(o *domain.Order) error {
		if o.Notes == notes {
			return errNoop
		}
		o.Notes = notes
		return nil
	})
}

func requireStage(o *domain.Order, stage domain.OrderStatus) error {
	if st := domain.DeriveStatus(o); st != stage {
		return fmt.Errorf("%w: requires %s, order is %s", domain.ErrInvalidTransition, stage, st)
	}
	return nil
}
