//go:build integration

package test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ateli/materialflow/internal/domain"
	"github.com/ateli/materialflow/internal/engine"
	"github.com/ateli/materialflow/internal/messaging"
	"github.com/ateli/materialflow/internal/notifier"
	"github.com/ateli/materialflow/internal/recordstore"
)

// recordStoreServer wires the repository behind its HTTP handler, the way
// the recordstore binary does.
func recordStoreServer(t *testing.T, pg *PostgresSetup) (*httptest.Server, *recordstore.Repository) {
	t.Helper()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := recordstore.NewRepository(db)
	handler := recordstore.NewHandler(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /projects/{projectId}/orders", handler.HandleListOrders)
	mux.HandleFunc("GET /orders/{id}", handler.HandleGetOrder)
	mux.HandleFunc("PUT /orders/{id}", handler.HandleUpsertOrder)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, repo
}

func TestOrderLifecycleFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	server, repo := recordStoreServer(t, pg)
	client := recordstore.NewClient(server.URL, server.Client())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := engine.NewStore("proj-1", client, engine.WithLogger(logger))
	if err := store.Load(ctx); err != nil {
		t.Fatalf("failed to load store: %v", err)
	}

	order, err := store.Create(ctx, engine.CreateOrderInput{
		Items: []engine.NewItem{
			{Name: "Cement", Quantity: 10, UnitPrice: decimal.NewFromInt(450)},
			{Name: "Sand", Quantity: 5, UnitPrice: decimal.RequireFromString("120.50")},
		},
		CreatedBy:     "u-creator",
		CreatedByName: "Priya",
		Approvers: []engine.Approver{
			{ID: "u1", Name: "Asha"},
			{ID: "u2", Name: "Vikram"},
		},
	})
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	if order.Status != domain.StatusPendingConfirmation {
		t.Fatalf("expected status %s, got %s", domain.StatusPendingConfirmation, order.Status)
	}

	if _, err := store.Approve(ctx, order.ID, "u1", ""); err != nil {
		t.Fatalf("failed to approve as u1: %v", err)
	}
	confirmed, err := store.Approve(ctx, order.ID, "u2", "go ahead")
	if err != nil {
		t.Fatalf("failed to approve as u2: %v", err)
	}
	if confirmed.Status != domain.StatusConfirmed {
		t.Fatalf("expected status %s, got %s", domain.StatusConfirmed, confirmed.Status)
	}

	if _, err := store.StartLoading(ctx, order.ID, "u-ops"); err != nil {
		t.Fatalf("failed to start loading: %v", err)
	}
	if _, err := store.Dispatch(ctx, order.ID, domain.DriverInfo{Name: "Ravi", Phone: "555-0101"}, "u-ops"); err != nil {
		t.Fatalf("failed to dispatch: %v", err)
	}
	if _, err := store.MarkDelivered(ctx, order.ID, domain.OutcomeCompleted, "u-ops"); err != nil {
		t.Fatalf("failed to mark delivered: %v", err)
	}

	var final domain.Order
	for _, item := range order.Items {
		final, err = store.ConfirmItem(ctx, order.ID, item.ID, "u-site")
		if err != nil {
			t.Fatalf("failed to confirm item %s: %v", item.ID, err)
		}
	}
	if final.Status != domain.StatusCompleted {
		t.Fatalf("expected status %s, got %s", domain.StatusCompleted, final.Status)
	}

	paid, err := store.RecordPayment(ctx, order.ID, domain.PayNow, final.TotalAmount, "u-payer")
	if err != nil {
		t.Fatalf("failed to record payment: %v", err)
	}
	if paid.Payment.Status != domain.PaymentCompleted {
		t.Fatalf("expected payment %s, got %s", domain.PaymentCompleted, paid.Payment.Status)
	}

	// The durable record has the same derived state.
	stored, err := repo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to fetch order from DB: %v", err)
	}
	if stored == nil {
		t.Fatal("order not found in database")
	}
	if stored.Status != domain.StatusCompleted {
		t.Errorf("DB status %s, expected %s", stored.Status, domain.StatusCompleted)
	}
	if !stored.TotalAmount.Equal(final.TotalAmount) {
		t.Errorf("DB total %s, expected %s", stored.TotalAmount, final.TotalAmount)
	}

	// A second session loading from scratch converges on the same state.
	other := engine.NewStore("proj-1", client, engine.WithLogger(logger))
	if err := other.Load(ctx); err != nil {
		t.Fatalf("failed to load second store: %v", err)
	}
	got, ok := other.Get(order.ID)
	if !ok {
		t.Fatal("second session does not see the order")
	}
	if got.Status != domain.StatusCompleted {
		t.Errorf("second session sees status %s", got.Status)
	}
	if got.Payment == nil || got.Payment.Status != domain.PaymentCompleted {
		t.Error("second session lost the payment record")
	}
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := recordstore.NewRepository(db)

	now := time.Now().UTC().Truncate(time.Microsecond)
	paidAt := now.Add(time.Minute)
	order := &domain.Order{
		ID:          "11111111-1111-1111-1111-111111111111",
		ProjectID:   "proj-rt",
		OrderNumber: "ORD-20260314-ABCDEF",
		Items: []domain.OrderItem{
			{ID: "i1", Name: "Cement", Quantity: 10, UnitPrice: decimal.NewFromInt(450), TotalPrice: decimal.NewFromInt(4500), IsConfirmed: true, ConfirmedBy: "u-site", ConfirmedAt: &now},
		},
		TotalAmount: decimal.NewFromInt(4500),
		Status:      domain.StatusDelivered,
		Approvals: []domain.OrderApproval{
			{UserID: "u1", UserName: "Asha", Action: domain.ApprovalApproved, Timestamp: &now, Comment: "ok"},
		},
		CreatedBy:    "u-creator",
		InitiatedBy:  "u-creator",
		DispatchedAt: &now,
		DeliveredAt:  &now,
		DriverInfo:   &domain.DriverInfo{Name: "Ravi", Phone: "555-0101", VehicleNumber: "KA-01-1234"},
		Payment:      &domain.PaymentInfo{Method: domain.PayOnDelivery, Status: domain.PaymentPartial, AmountPaid: decimal.NewFromInt(2000), PaidBy: "u-payer", PaidAt: &paidAt},
		Notes:        "deliver to gate 3",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := repo.Upsert(ctx, order, "Priya"); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	got, err := repo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to get order: %v", err)
	}
	if got == nil {
		t.Fatal("order not found")
	}
	if !got.Items[0].IsConfirmed || got.Items[0].ConfirmedBy != "u-site" {
		t.Errorf("item confirmation lost: %+v", got.Items[0])
	}
	if got.Approvals[0].Action != domain.ApprovalApproved || got.Approvals[0].Comment != "ok" {
		t.Errorf("approval lost: %+v", got.Approvals[0])
	}
	if got.Payment == nil || !got.Payment.AmountPaid.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("payment lost: %+v", got.Payment)
	}
	if got.DriverInfo == nil || got.DriverInfo.VehicleNumber != "KA-01-1234" {
		t.Errorf("driver info lost: %+v", got.DriverInfo)
	}
	if got.DeliveredAt == nil || !got.DeliveredAt.Equal(now) {
		t.Errorf("delivery timestamp lost: %v", got.DeliveredAt)
	}

	// Upsert replaces the full record.
	order.Status = domain.StatusCompleted
	order.Payment.Status = domain.PaymentCompleted
	if err := repo.Upsert(ctx, order, "Priya"); err != nil {
		t.Fatalf("failed to re-upsert: %v", err)
	}
	got, err = repo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to get order: %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Errorf("expected replaced status %s, got %s", domain.StatusCompleted, got.Status)
	}

	listed, err := repo.ListByProject(ctx, "proj-rt")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 order, got %d", len(listed))
	}
}

func TestEventNotificationFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanupKafka := SetupKafka(ctx, t)
	defer cleanupKafka()

	var mu sync.Mutex
	var received []map[string]string
	notifyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n map[string]string
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			t.Errorf("failed to decode notification: %v", err)
		}
		mu.Lock()
		received = append(received, n)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"delivered"}`))
	}))
	defer notifyServer.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := notifier.NewHandler(notifyServer.URL, notifyServer.Client(), logger)

	consumer := messaging.NewConsumer(brokers, messaging.TopicStatusChanged, "notifier-test")
	defer func() { _ = consumer.Close() }()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(consumerCtx, handler.HandleStatusChange)
	}()

	producer := messaging.NewProducer(brokers, messaging.TopicStatusChanged)
	defer func() { _ = producer.Close() }()

	event := domain.OrderStatusChangedEvent{
		OrderID:     "o1",
		ProjectID:   "proj-1",
		OrderNumber: "ORD-20260314-ABCDEF",
		From:        domain.StatusPendingConfirmation,
		To:          domain.StatusConfirmed,
		ActorID:     "u2",
		Timestamp:   time.Now().UTC(),
	}
	if err := producer.Publish(ctx, event.OrderID, event); err != nil {
		t.Fatalf("failed to publish event: %v", err)
	}

	deadline := time.After(time.Minute)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("notification never arrived")
		case err := <-done:
			t.Fatalf("consumer stopped early: %v", err)
		case <-time.After(200 * time.Millisecond):
		}
	}

	mu.Lock()
	got := received[0]
	mu.Unlock()
	if got["order_id"] != "o1" || got["title"] != "Order ORD-20260314-ABCDEF: confirmed" {
		t.Errorf("unexpected notification %+v", got)
	}

	stopConsumer()
}
