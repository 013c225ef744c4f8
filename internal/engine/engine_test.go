package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ateli/materialflow/internal/domain"
)

// fakeRecords is an in-memory RecordStore with fault injection.
type fakeRecords struct {
	mu           sync.Mutex
	orders       map[string]domain.Order
	upserts      int
	attributions []string
	failUpsert   error
	failList     error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{orders: make(map[string]domain.Order)}
}

func (f *fakeRecords) ListOrders(_ context.Context, projectID string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	var out []domain.Order
	for _, o := range f.orders {
		if o.ProjectID == projectID {
			out = append(out, *o.Clone())
		}
	}
	return out, nil
}

func (f *fakeRecords) UpsertOrder(_ context.Context, order *domain.Order, attribution string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert != nil {
		return f.failUpsert
	}
	f.orders[order.ID] = *order.Clone()
	f.upserts++
	f.attributions = append(f.attributions, attribution)
	return nil
}

func (f *fakeRecords) stored(id string) (domain.Order, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	return o, ok
}

var testClock = func() time.Time {
	return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
}

func newTestStore(records *fakeRecords) *Store {
	seq := 0
	return NewStore("proj-1", records,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(testClock),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%04d", seq)
		}),
	)
}

func createTestOrder(t *testing.T, s *Store, approvers ...Approver) domain.Order {
	t.Helper()
	order, err := s.Create(context.Background(), CreateOrderInput{
		Items: []NewItem{
			{Name: "Cement", Quantity: 10, UnitPrice: decimal.NewFromInt(450)},
			{Name: "Steel rods", Quantity: 20, UnitPrice: decimal.RequireFromString("89.50")},
		},
		CreatedBy:     "u-creator",
		CreatedByName: "Priya",
		Approvers:     approvers,
	})
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	return order
}

// approveAll drives the order to the confirmed stage.
func approveAll(t *testing.T, s *Store, order domain.Order) domain.Order {
	t.Helper()
	var err error
	for _, a := range order.Approvals {
		order, err = s.Approve(context.Background(), order.ID, a.UserID, "")
		if err != nil {
			t.Fatalf("failed to approve as %s: %v", a.UserID, err)
		}
	}
	return order
}

// deliverOrder drives an approved order through loading, dispatch and
// delivery.
func deliverOrder(t *testing.T, s *Store, orderID string, outcome domain.DeliveryOutcome) domain.Order {
	t.Helper()
	ctx := context.Background()
	if _, err := s.StartLoading(ctx, orderID, "u-ops"); err != nil {
		t.Fatalf("failed to start loading: %v", err)
	}
	if _, err := s.Dispatch(ctx, orderID, domain.DriverInfo{Name: "Ravi", Phone: "555-0101"}, "u-ops"); err != nil {
		t.Fatalf("failed to dispatch: %v", err)
	}
	order, err := s.MarkDelivered(ctx, orderID, outcome, "u-ops")
	if err != nil {
		t.Fatalf("failed to mark delivered: %v", err)
	}
	return order
}
