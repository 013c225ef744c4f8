package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/ateli/materialflow/internal/domain"
)

func TestStore_Approve(t *testing.T) {
	t.Run("partial consensus stays pending", func(t *testing.T) {
		s := newTestStore(newFakeRecords())
		order := createTestOrder(t, s,
			Approver{ID: "u1", Name: "Asha"},
			Approver{ID: "u2", Name: "Vikram"},
		)

		after, err := s.Approve(context.Background(), order.ID, "u1", "")
		if err != nil {
			t.Fatalf("failed to approve: %v", err)
		}

		if after.Status != domain.StatusPendingConfirmation {
			t.Errorf("expected status %s, got %s", domain.StatusPendingConfirmation, after.Status)
		}
		entry := after.Approval("u1")
		if entry.Action != domain.ApprovalApproved {
			t.Errorf("expected approved, got %s", entry.Action)
		}
		if entry.Timestamp == nil {
			t.Error("expected decision timestamp")
		}
	})

	t.Run("unanimous approval confirms", func(t *testing.T) {
		records := newFakeRecords()
		s := newTestStore(records)
		order := createTestOrder(t, s,
			Approver{ID: "u1", Name: "Asha"},
			Approver{ID: "u2", Name: "Vikram"},
		)

		after := approveAll(t, s, order)

		if after.Status != domain.StatusConfirmed {
			t.Errorf("expected status %s, got %s", domain.StatusConfirmed, after.Status)
		}
		stored, _ := records.stored(order.ID)
		if stored.Status != domain.StatusConfirmed {
			t.Errorf("record store has status %s", stored.Status)
		}
	})

	t.Run("attributes the write to the approver", func(t *testing.T) {
		records := newFakeRecords()
		s := newTestStore(records)
		order := createTestOrder(t, s, Approver{ID: "u1", Name: "Asha"})

		if _, err := s.Approve(context.Background(), order.ID, "u1", ""); err != nil {
			t.Fatalf("failed to approve: %v", err)
		}

		last := records.attributions[len(records.attributions)-1]
		if last != "Asha" {
			t.Errorf("expected attribution 'Asha', got %q", last)
		}
	})

	t.Run("rejects identities outside the ledger", func(t *testing.T) {
		s := newTestStore(newFakeRecords())
		order := createTestOrder(t, s, Approver{ID: "u1", Name: "Asha"})

		_, err := s.Approve(context.Background(), order.ID, "intruder", "")
		if !errors.Is(err, domain.ErrInvalidApprover) {
			t.Errorf("expected %v, got %v", domain.ErrInvalidApprover, err)
		}
	})

	t.Run("decisions are final", func(t *testing.T) {
		s := newTestStore(newFakeRecords())
		order := createTestOrder(t, s, Approver{ID: "u1", Name: "Asha"}, Approver{ID: "u2", Name: "Vikram"})

		if _, err := s.Approve(context.Background(), order.ID, "u1", ""); err != nil {
			t.Fatalf("failed to approve: %v", err)
		}

		if _, err := s.Approve(context.Background(), order.ID, "u1", ""); !errors.Is(err, domain.ErrAlreadyDecided) {
			t.Errorf("expected %v on repeat approval, got %v", domain.ErrAlreadyDecided, err)
		}
		if _, err := s.Reject(context.Background(), order.ID, "u1", "changed my mind"); !errors.Is(err, domain.ErrAlreadyDecided) {
			t.Errorf("expected %v on flip to reject, got %v", domain.ErrAlreadyDecided, err)
		}
	})
}

func TestStore_Reject(t *testing.T) {
	t.Run("single rejection cancels", func(t *testing.T) {
		s := newTestStore(newFakeRecords())
		order := createTestOrder(t, s,
			Approver{ID: "u1", Name: "Asha"},
			Approver{ID: "u2", Name: "Vikram"},
			Approver{ID: "u3", Name: "Meera"},
		)

		if _, err := s.Approve(context.Background(), order.ID, "u1", ""); err != nil {
			t.Fatalf("failed to approve: %v", err)
		}
		after, err := s.Reject(context.Background(), order.ID, "u2", "wrong grade of cement")
		if err != nil {
			t.Fatalf("failed to reject: %v", err)
		}

		if after.Status != domain.StatusCancelled {
			t.Errorf("expected status %s, got %s", domain.StatusCancelled, after.Status)
		}
		if after.Approval("u2").Comment != "wrong grade of cement" {
			t.Errorf("expected rejection comment to be recorded")
		}
	})

	t.Run("no decisions after a veto", func(t *testing.T) {
		s := newTestStore(newFakeRecords())
		order := createTestOrder(t, s, Approver{ID: "u1", Name: "Asha"}, Approver{ID: "u2", Name: "Vikram"})

		if _, err := s.Reject(context.Background(), order.ID, "u1", ""); err != nil {
			t.Fatalf("failed to reject: %v", err)
		}

		// The remaining entry is still pending, so the decision itself is
		// accepted, but the derived status stays cancelled.
		after, err := s.Approve(context.Background(), order.ID, "u2", "")
		if err != nil {
			t.Fatalf("failed to approve after veto: %v", err)
		}
		if after.Status != domain.StatusCancelled {
			t.Errorf("expected status %s, got %s", domain.StatusCancelled, after.Status)
		}
	})
}
