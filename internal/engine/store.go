// Package engine implements the order lifecycle engine: the approval
// ledger, item confirmation tracking, payment reconciliation, and the Store
// façade every caller routes mutations through.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ateli/materialflow/internal/domain"
)

// DefaultPollInterval is the reconciliation cadence between sessions. The
// engine favors responsiveness over strict consistency; stale writes are
// healed by re-deriving status from the full record on each refresh.
const DefaultPollInterval = 5 * time.Second

// RecordStore is the durable record of truth. The engine's contract with it
// is deliberately narrow: read everything for a project, replace one order
// wholesale. No partial-field update primitive is assumed.
type RecordStore interface {
	ListOrders(ctx context.Context, projectID string) ([]domain.Order, error)
	UpsertOrder(ctx context.Context, order *domain.Order, attributionName string) error
}

// errNoop signals an idempotent mutation that changed nothing; the store
// reports success without a durable write.
var errNoop = errors.New("no-op")

// Store owns the in-memory order collection for one project. Every mutation
// follows the same discipline: snapshot, apply optimistically, re-derive
// status, attempt the durable write, and on failure restore the snapshot
// before surfacing the error.
type Store struct {
	projectID string
	records   RecordStore
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	metrics   storeMetrics

	mu     sync.Mutex
	orders map[string]*domain.Order
	index  []string // newest first
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func NewStore(projectID string, records RecordStore, opts ...Option) *Store {
	s := &Store{
		projectID: projectID,
		records:   records,
		logger:    slog.Default(),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		metrics:   newStoreMetrics(),
		orders:    make(map[string]*domain.Order),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory collection with the durable record.
func (s *Store) Load(ctx context.Context) error {
	listed, err := s.records.ListOrders(ctx, s.projectID)
	if err != nil {
		return fmt.Errorf("list orders for project %s: %w", s.projectID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = make(map[string]*domain.Order, len(listed))
	s.index = s.index[:0]
	for i := range listed {
		o := listed[i].Clone()
		s.orders[o.ID] = o
		s.index = append(s.index, o.ID)
	}
	return nil
}

// Refresh is Load under its reconciliation name. A failed refresh keeps the
// previous snapshot intact.
func (s *Store) Refresh(ctx context.Context) error {
	s.metrics.refreshes.Add(ctx, 1)
	return s.Load(ctx)
}

// Poll refreshes on a fixed interval until ctx is done. Failures are logged
// and swallowed; this is the one place errors do not propagate.
func (s *Store) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("order refresh failed, keeping previous snapshot",
					"error", err, "project_id", s.projectID)
			}
		}
	}
}

// Get returns a copy of one order.
func (s *Store) Get(orderID string) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, false
	}
	return *o.Clone(), true
}

// Orders returns copies of every cached order, newest first.
func (s *Store) Orders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Order, 0, len(s.index))
	for _, id := range s.index {
		out = append(out, *s.orders[id].Clone())
	}
	return out
}

// NewItem is a line in an order-creation payload, already coerced to
// numbers but not yet validated.
type NewItem struct {
	Name        string
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

type Approver struct {
	ID   string
	Name string
}

type CreateOrderInput struct {
	Items         []NewItem
	CreatedBy     string
	CreatedByName string
	InitiatedBy   string
	// Approvers is determined externally by project membership. One pending
	// ledger entry is initialized per distinct identity.
	Approvers          []Approver
	Notes              string
	NeedsClarification bool
}

// Create validates the payload, assigns identity, and persists the new
// order. A failed durable write leaves the collection untouched.
func (s *Store) Create(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if len(in.Items) == 0 {
		return domain.Order{}, fmt.Errorf("%w: order has no items", domain.ErrValidation)
	}
	if in.CreatedBy == "" {
		return domain.Order{}, fmt.Errorf("%w: missing creator identity", domain.ErrValidation)
	}

	now := s.now().UTC()

	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		if strings.TrimSpace(it.Name) == "" {
			return domain.Order{}, fmt.Errorf("%w: item name is required", domain.ErrValidation)
		}
		if it.Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("%w: quantity must be positive for %q", domain.ErrValidation, it.Name)
		}
		if it.UnitPrice.IsNegative() {
			return domain.Order{}, fmt.Errorf("%w: unit price must not be negative for %q", domain.ErrValidation, it.Name)
		}
		items = append(items, domain.OrderItem{
			ID:          s.newID(),
			Name:        it.Name,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	initiatedBy := in.InitiatedBy
	if initiatedBy == "" {
		initiatedBy = in.CreatedBy
	}

	order := &domain.Order{
		ID:                 s.newID(),
		ProjectID:          s.projectID,
		Items:              items,
		Approvals:          initApprovals(in.Approvers),
		CreatedBy:          in.CreatedBy,
		CreatedByName:      in.CreatedByName,
		InitiatedBy:        initiatedBy,
		NeedsClarification: in.NeedsClarification,
		Notes:              in.Notes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	order.OrderNumber = s.orderNumber(now, order.ID)
	order.RecomputeTotals()
	order.Status = domain.DeriveStatus(order)

	if err := s.records.UpsertOrder(ctx, order, in.CreatedByName); err != nil {
		s.metrics.rollbacks.Add(ctx, 1)
		return domain.Order{}, &domain.DurableWriteError{Err: err}
	}

	s.mu.Lock()
	s.orders[order.ID] = order
	s.index = append([]string{order.ID}, s.index...)
	s.mu.Unlock()

	s.metrics.mutations.Add(ctx, 1)
	s.logger.Info("order created",
		"order_id", order.ID, "order_number", order.OrderNumber,
		"project_id", s.projectID, "total", order.TotalAmount.String())
	return *order.Clone(), nil
}

// orderNumber builds the human-readable display number. It is never used
// for lookup.
func (s *Store) orderNumber(now time.Time, id string) string {
	short := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(short) > 6 {
		short = short[:6]
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), short)
}

// mutate is the single choke point for updates to an existing order.
func (s *Store) mutate(ctx context.Context, orderID, attribution string, fn func(o *domain.Order) error) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	snapshot := cur.Clone()

	if err := fn(cur); err != nil {
		if errors.Is(err, errNoop) {
			return *cur.Clone(), nil
		}
		// fn may have touched the aggregate before failing; restore.
		s.orders[orderID] = snapshot
		return domain.Order{}, err
	}

	now := s.now().UTC()
	cur.RecomputeTotals()
	cur.Status = domain.DeriveStatus(cur)
	if cur.ConfirmedAt == nil && cur.Status.AtOrAfter(domain.StatusConfirmed) {
		t := now
		cur.ConfirmedAt = &t
	}
	cur.UpdatedAt = now

	if err := s.records.UpsertOrder(ctx, cur, attribution); err != nil {
		s.orders[orderID] = snapshot
		s.metrics.rollbacks.Add(ctx, 1)
		s.logger.Error("durable write failed, optimistic update rolled back",
			"error", err, "order_id", orderID, "project_id", s.projectID)
		return domain.Order{}, &domain.DurableWriteError{Err: err}
	}

	s.metrics.mutations.Add(ctx, 1)
	return *cur.Clone(), nil
}

func initApprovals(approvers []Approver) []domain.OrderApproval {
	var approvals []domain.OrderApproval
	seen := make(map[string]bool, len(approvers))
	for _, a := range approvers {
		if a.ID == "" || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		approvals = append(approvals, domain.OrderApproval{
			UserID:   a.ID,
			UserName: a.Name,
			Action:   domain.ApprovalPending,
		})
	}
	return approvals
}
