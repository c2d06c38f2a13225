package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/meridian/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

// OrderStore persists completed orders. Line items, the shipping selection,
// and the discount outcome are stored as JSONB snapshots so the record stays
// stable when the catalog or coupons change later. The unique index on
// payment_ref is what makes webhook-driven completion idempotent.
type OrderStore struct {
	pool *pgxpool.Pool
}

var _ domain.OrderRepository = (*OrderStore)(nil)

// NewOrderStore creates a PostgreSQL-backed order store.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// CreateOrder inserts the order. A duplicate payment reference returns
// ECONFLICT so the caller can fall back to the already-persisted order.
func (s *OrderStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to encode order lines")
	}
	shippingSel, err := json.Marshal(order.Shipping)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to encode shipping selection")
	}
	discount, err := json.Marshal(order.Discount)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to encode discount")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO orders (
			id, order_number, status, user_id, payment_ref,
			lines, shipping, discount,
			items_total, shipping_cost, discount_total, grand_total,
			currency, placed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		order.ID, order.Number, string(order.Status), order.UserID, order.PaymentRef,
		lines, shippingSel, discount,
		order.Totals.ItemsTotal, order.Totals.ShippingCost,
		order.Totals.DiscountTotal, order.Totals.GrandTotal,
		order.Currency, order.PlacedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Conflict("order.create", "order already exists for payment reference")
		}
		return domain.Internal(err, "order.create", "failed to insert order")
	}
	return nil
}

// GetByPaymentRef loads the order committed for a payment reference.
func (s *OrderStore) GetByPaymentRef(ctx context.Context, paymentRef string) (*domain.Order, error) {
	var (
		order       domain.Order
		status      string
		lines       []byte
		shippingSel []byte
		discount    []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, order_number, status, user_id, payment_ref,
		        lines, shipping, discount,
		        items_total, shipping_cost, discount_total, grand_total,
		        currency, placed_at
		 FROM orders WHERE payment_ref = $1`, paymentRef).Scan(
		&order.ID, &order.Number, &status, &order.UserID, &order.PaymentRef,
		&lines, &shippingSel, &discount,
		&order.Totals.ItemsTotal, &order.Totals.ShippingCost,
		&order.Totals.DiscountTotal, &order.Totals.GrandTotal,
		&order.Currency, &order.PlacedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("order.get_by_payment_ref", "order", paymentRef)
		}
		return nil, domain.Internal(err, "order.get_by_payment_ref", "failed to load order")
	}

	order.Status = domain.OrderStatus(status)
	if err := json.Unmarshal(lines, &order.Lines); err != nil {
		return nil, domain.Internal(err, "order.get_by_payment_ref", "failed to decode order lines")
	}
	if err := json.Unmarshal(shippingSel, &order.Shipping); err != nil {
		return nil, domain.Internal(err, "order.get_by_payment_ref", "failed to decode shipping selection")
	}
	if err := json.Unmarshal(discount, &order.Discount); err != nil {
		return nil, domain.Internal(err, "order.get_by_payment_ref", "failed to decode discount")
	}
	return &order, nil
}

// UpdateStatus moves an order to a new lifecycle status.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`, orderID, string(status))
	if err != nil {
		return domain.Internal(err, "order.update_status", "failed to update order status")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("order.update_status", "order", orderID)
	}
	return nil
}
