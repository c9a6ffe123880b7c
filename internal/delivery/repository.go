package delivery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"lmp-be/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const paidOrderStatus = "PAID"

type Repository interface {
	// CreateMissing inserts a PENDING delivery for every PAID order that has
	// none, restricted to orderID when given, and returns the rows it created.
	CreateMissing(ctx context.Context, orderID *uuid.UUID) ([]Delivery, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Delivery, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateMissing(ctx context.Context, orderID *uuid.UUID) ([]Delivery, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreateMissing"),
	)

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO deliveries (order_id, status)
		SELECT o.id, $1
		FROM orders o
		LEFT JOIN deliveries d ON d.order_id = o.id
		WHERE o.status = $2 AND d.id IS NULL`)

	args := []any{StatusPending, paidOrderStatus}
	if orderID != nil {
		args = append(args, *orderID)
		sb.WriteString(fmt.Sprintf(" AND o.id = $%d", len(args)))
	}

	// Two concurrent sweeps can both see the order as missing a delivery;
	// the unique order_id makes the loser a no-op.
	sb.WriteString(`
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id, order_id, status, driver_id, route_id, created_at`)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		log.Error("failed to materialize deliveries", zap.Error(err))
		return nil, fmt.Errorf("create deliveries: %w", err)
	}
	defer rows.Close()

	var created []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.OrderID, &d.Status, &d.DriverID, &d.RouteID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		created = append(created, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}

	return created, nil
}

func (r *repository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Delivery, error) {
	var d Delivery
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, status, driver_id, route_id, created_at
		FROM deliveries
		WHERE order_id = $1
	`, orderID).Scan(&d.ID, &d.OrderID, &d.Status, &d.DriverID, &d.RouteID, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return &d, nil
}
