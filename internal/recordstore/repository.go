// Package recordstore implements the durable record of truth for orders:
// a Postgres repository, the HTTP surface in front of it, and the client
// the engine uses to reach that surface.
package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ateli/materialflow/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Upsert replaces the full record keyed by order id. There is no
// partial-field update: every mutation round-trips the entire order, which
// keeps last-write-wins semantics trivially true.
func (r *Repository) Upsert(ctx context.Context, order *domain.Order, updatedBy string) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	approvals, err := json.Marshal(order.Approvals)
	if err != nil {
		return fmt.Errorf("marshal approvals: %w", err)
	}

	var payment, driver []byte
	if order.Payment != nil {
		if payment, err = json.Marshal(order.Payment); err != nil {
			return fmt.Errorf("marshal payment: %w", err)
		}
	}
	if order.DriverInfo != nil {
		if driver, err = json.Marshal(order.DriverInfo); err != nil {
			return fmt.Errorf("marshal driver info: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, project_id, order_number, items, total_amount, status,
			approvals, created_by, created_by_name, initiated_by,
			needs_clarification, loading_started_at, dispatched_at,
			delivered_at, delivery_outcome, cancelled, on_hold,
			driver_info, payment, notes, updated_by,
			created_at, updated_at, confirmed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24
		)
		ON CONFLICT (id) DO UPDATE SET
			order_number = EXCLUDED.order_number,
			items = EXCLUDED.items,
			total_amount = EXCLUDED.total_amount,
			status = EXCLUDED.status,
			approvals = EXCLUDED.approvals,
			created_by_name = EXCLUDED.created_by_name,
			initiated_by = EXCLUDED.initiated_by,
			needs_clarification = EXCLUDED.needs_clarification,
			loading_started_at = EXCLUDED.loading_started_at,
			dispatched_at = EXCLUDED.dispatched_at,
			delivered_at = EXCLUDED.delivered_at,
			delivery_outcome = EXCLUDED.delivery_outcome,
			cancelled = EXCLUDED.cancelled,
			on_hold = EXCLUDED.on_hold,
			driver_info = EXCLUDED.driver_info,
			payment = EXCLUDED.payment,
			notes = EXCLUDED.notes,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at,
			confirmed_at = EXCLUDED.confirmed_at
	`,
		order.ID, order.ProjectID, order.OrderNumber, items, order.TotalAmount,
		order.Status, approvals, order.CreatedBy, order.CreatedByName,
		order.InitiatedBy, order.NeedsClarification,
		nullTime(order.LoadingStartedAt), nullTime(order.DispatchedAt),
		nullTime(order.DeliveredAt), string(order.DeliveryOutcome),
		order.Cancelled, order.OnHold, nullBytes(driver), nullBytes(payment),
		order.Notes, updatedBy, order.CreatedAt, order.UpdatedAt,
		nullTime(order.ConfirmedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", order.ID, err)
	}
	return nil
}

// ListByProject returns every order for a project, newest first.
func (r *Repository) ListByProject(ctx context.Context, projectID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+`
		FROM orders
		WHERE project_id = $1
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list orders for project %s: %w", projectID, err)
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetByID returns one order, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+`
		FROM orders
		WHERE id = $1
	`, id)

	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

const selectColumns = `
		SELECT id, project_id, order_number, items, total_amount, status,
		       approvals, created_by, created_by_name, initiated_by,
		       needs_clarification, loading_started_at, dispatched_at,
		       delivered_at, delivery_outcome, cancelled, on_hold,
		       driver_info, payment, notes, created_at, updated_at,
		       confirmed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                      domain.Order
		items, approvals       []byte
		driver, payment        []byte
		createdByName, outcome sql.NullString
		loading, dispatched    sql.NullTime
		delivered, confirmed   sql.NullTime
		totalAmount            decimal.Decimal
	)

	err := row.Scan(
		&o.ID, &o.ProjectID, &o.OrderNumber, &items, &totalAmount, &o.Status,
		&approvals, &o.CreatedBy, &createdByName, &o.InitiatedBy,
		&o.NeedsClarification, &loading, &dispatched, &delivered, &outcome,
		&o.Cancelled, &o.OnHold, &driver, &payment, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt, &confirmed,
	)
	if err != nil {
		return nil, err
	}

	o.TotalAmount = totalAmount
	o.CreatedByName = createdByName.String
	o.DeliveryOutcome = domain.DeliveryOutcome(outcome.String)
	o.LoadingStartedAt = timePtr(loading)
	o.DispatchedAt = timePtr(dispatched)
	o.DeliveredAt = timePtr(delivered)
	o.ConfirmedAt = timePtr(confirmed)

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items for order %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(approvals, &o.Approvals); err != nil {
		return nil, fmt.Errorf("unmarshal approvals for order %s: %w", o.ID, err)
	}
	if len(driver) > 0 {
		o.DriverInfo = &domain.DriverInfo{}
		if err := json.Unmarshal(driver, o.DriverInfo); err != nil {
			return nil, fmt.Errorf("unmarshal driver info for order %s: %w", o.ID, err)
		}
	}
	if len(payment) > 0 {
		o.Payment = &domain.PaymentInfo{}
		if err := json.Unmarshal(payment, o.Payment); err != nil {
			return nil, fmt.Errorf("unmarshal payment for order %s: %w", o.ID, err)
		}
	}

	return &o, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
