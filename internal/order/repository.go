package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lmp-be/internal/db"
	"lmp-be/internal/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const orderNumberConstraint = "orders_order_number_key"

type PaymentReference struct {
	SessionID       string
	PaymentIntentID string
}

type Repository interface {
	// CreatePendingOrder writes the order and its items in one transaction.
	CreatePendingOrder(ctx context.Context, o *Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// MarkAsPaid moves a PENDING order to PAID. It reports false without
	// error when the order is already past PENDING.
	MarkAsPaid(ctx context.Context, id uuid.UUID, ref PaymentReference) (bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreatePendingOrder(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "CreatePendingOrder"),
		zap.String("order_number", o.OrderNumber),
		zap.Int("item_count", len(o.Items)),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to rollback transaction", zap.Error(rbErr))
			} else {
				log.Debug("transaction rolled back")
			}
		}
	}()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			id, order_number, user_id,
			customer_name, customer_email, customer_phone,
			shipping_street, shipping_city, shipping_zip, delivery_date,
			total, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at
	`,
		o.ID,
		o.OrderNumber,
		o.UserID,
		o.CustomerName,
		o.CustomerEmail,
		o.CustomerPhone,
		o.ShippingStreet,
		o.ShippingCity,
		o.ShippingZip,
		o.DeliveryDate,
		o.Total,
		o.Status,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, orderNumberConstraint) {
			log.Warn("order number collision")
			return ErrDuplicateOrderNumber
		}
		log.Error("failed to insert order", zap.Error(err))
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID

		err = tx.QueryRowContext(ctx, `
			INSERT INTO order_items (
				order_id, meal_id, meal_name, quantity, unit_price, position
			) VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id
		`,
			o.ID,
			item.MealID,
			item.MealName,
			item.Quantity,
			item.UnitPrice,
			i,
		).Scan(&item.ID)
		if err != nil {
			log.Error("failed to insert order item",
				zap.Int("item_index", i),
				zap.String("meal_id", item.MealID),
				zap.Error(err),
			)
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit order transaction", zap.Error(err))
		return fmt.Errorf("commit order: %w", err)
	}

	committed = true
	log.Info("pending order committed")

	return nil
}

func (r *repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	var userID sql.NullInt64

	err := r.db.QueryRowContext(ctx, `
		SELECT
			id, order_number, user_id,
			customer_name, customer_email, customer_phone,
			shipping_street, shipping_city, shipping_zip, delivery_date,
			total, status, stripe_session_id, payment_intent_id, paid_at,
			created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&o.ID,
		&o.OrderNumber,
		&userID,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.CustomerPhone,
		&o.ShippingStreet,
		&o.ShippingCity,
		&o.ShippingZip,
		&o.DeliveryDate,
		&o.Total,
		&o.Status,
		&o.StripeSessionID,
		&o.PaymentIntentID,
		&o.PaidAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	if userID.Valid {
		uid := uint(userID.Int64)
		o.UserID = &uid
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, meal_id, meal_name, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item := OrderItem{OrderID: o.ID}
		if err := rows.Scan(&item.ID, &item.MealID, &item.MealName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return &o, nil
}

func (r *repository) MarkAsPaid(ctx context.Context, id uuid.UUID, ref PaymentReference) (bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "MarkAsPaid"),
	)

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2,
			stripe_session_id = COALESCE(NULLIF($3, ''), stripe_session_id),
			payment_intent_id = COALESCE(NULLIF($4, ''), payment_intent_id),
			paid_at = now(),
			updated_at = now()
		WHERE id = $1 AND status = ANY($5)
	`, id, StatusPaid, ref.SessionID, ref.PaymentIntentID, pq.Array(sourcesOf(StatusPaid)))
	if err != nil {
		log.Error("failed to update order status", zap.Error(err))
		return false, fmt.Errorf("update order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	// Nothing moved: either the order is unknown or it is already past PAID's
	// source states.
	var current OrderStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrOrderNotFound
	}
	if err != nil {
		return false, fmt.Errorf("read order status: %w", err)
	}
	if !current.Valid() {
		log.Error("order has unknown status", zap.String("status", string(current)))
		return false, fmt.Errorf("order %s has unknown status %q", id, current)
	}

	log.Info("order already past pending, status left unchanged", zap.String("status", string(current)))
	return false, nil
}
