package engine

import (
	"context"
	"fmt"

	"github.com/ateli/materialflow/internal/domain"
)

// The approval ledger has AND-semantics with a single-rejection veto: every
// listed approver must approve for the order to proceed, and one rejection
// cancels it outright. There is no quorum and no re-decision; each approver
// binds committed spend for their role, so a decision is final.

// Approve records an approval decision for approverID.
func (s *Store) Approve(ctx context.Context, orderID, approverID, comment string) (domain.Order, error) {
	return s.decide(ctx, orderID, approverID, domain.ApprovalApproved, comment)
}

// Reject records a rejection. A single rejection is a veto; the derived
// status becomes cancelled regardless of the other entries.
func (s *Store) Reject(ctx context.Context, orderID, approverID, comment string) (domain.Order, error) {
	return s.decide(ctx, orderID, approverID, domain.ApprovalRejected, comment)
}

func (s *Store) decide(ctx context.Context, orderID, approverID string, action domain.ApprovalAction, comment string) (domain.Order, error) {
	var attribution string
	if o, ok := s.Get(orderID); ok {
		if a := o.Approval(approverID); a != nil {
			attribution = a.UserName
		}
	}

	return s.mutate(ctx, orderID, attribution, func(o *domain.Order) error {
		entry := o.Approval(approverID)
		if entry == nil {
			return fmt.Errorf("%w: %s", domain.ErrInvalidApprover, approverID)
		}
		if entry.Action != domain.ApprovalPending {
			return fmt.Errorf("%w: %s already %s", domain.ErrAlreadyDecided, approverID, entry.Action)
		}

		t := s.now().UTC()
		entry.Action = action
		entry.Timestamp = &t
		entry.Comment = comment
		return nil
	})
}
