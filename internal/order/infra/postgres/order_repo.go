package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shop-fulfillment/internal/order/app"
	"github.com/dwikikusuma/shop-fulfillment/internal/order/domain"
)

const uniqueViolation = "23505"

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

var _ app.OrderRepo = (*OrderRepo)(nil)

func (r *OrderRepo) Create(ctx context.Context, o domain.Order) (domain.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, buyer_id, total_amount, currency, payment_ref, status,
			ship_street, ship_city, ship_state, ship_postal_code, ship_country,
			needs_review, review_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.BuyerID, o.TotalAmount.String(), o.Currency, o.PaymentRef, string(o.Status),
		o.ShippingAddress.Street, o.ShippingAddress.City, o.ShippingAddress.State,
		o.ShippingAddress.PostalCode, o.ShippingAddress.Country,
		o.NeedsReview, o.ReviewReason)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Order{}, app.ErrDuplicatePaymentRef
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for i, item := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, name, unit_price, quantity, unfulfilled)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, item.ProductID, item.Name, item.UnitPrice.String(), item.Quantity, item.Unfulfilled)
		if err != nil {
			return domain.Order{}, fmt.Errorf("insert item %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return r.Get(ctx, o.ID)
}

func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	return r.getWhere(ctx, `id = $1`, id)
}

func (r *OrderRepo) GetByPaymentRef(ctx context.Context, ref string) (domain.Order, error) {
	return r.getWhere(ctx, `payment_ref = $1`, ref)
}

func (r *OrderRepo) getWhere(ctx context.Context, cond string, arg any) (domain.Order, error) {
	row := r.pool.QueryRow(ctx, selectOrder+` WHERE `+cond, arg)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.Items, err = r.loadItems(ctx, o.ID)
	return o, err
}

func (r *OrderRepo) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return r.listWhere(ctx, `buyer_id = $1`, buyerID)
}

func (r *OrderRepo) ListNeedingReview(ctx context.Context) ([]domain.Order, error) {
	return r.listWhere(ctx, `needs_review`)
}

func (r *OrderRepo) listWhere(ctx context.Context, cond string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, selectOrder+` WHERE `+cond+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Items, err = r.loadItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TransitionStatus is a single conditional update: the expected statuses are
// re-verified inside the UPDATE itself, so a concurrent cancel and admin
// update on the same order cannot both win.
func (r *OrderRepo) TransitionStatus(ctx context.Context, id string, from []domain.Status, to domain.Status, at time.Time) (domain.Order, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	tsColumn := ""
	switch to {
	case domain.StatusShipped:
		tsColumn = `, shipped_at = $4`
	case domain.StatusDelivered:
		tsColumn = `, delivered_at = $4`
	case domain.StatusCancelled:
		tsColumn = `, cancelled_at = $4`
	}

	query := `UPDATE orders SET status = $2, updated_at = $4` + tsColumn +
		` WHERE id = $1 AND status = ANY($3)`
	tag, err := r.pool.Exec(ctx, query, id, string(to), fromStrs, at)
	if err != nil {
		return domain.Order{}, err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing order from a lost race.
		if _, gerr := r.Get(ctx, id); gerr != nil {
			return domain.Order{}, gerr
		}
		return domain.Order{}, app.ErrStatusConflict
	}
	return r.Get(ctx, id)
}

const selectOrder = `
	SELECT id, buyer_id, total_amount::text, currency, payment_ref, status,
	       ship_street, ship_city, ship_state, ship_postal_code, ship_country,
	       needs_review, review_reason,
	       created_at, updated_at, shipped_at, delivered_at, cancelled_at
	FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o        domain.Order
		totalStr string
		status   string
	)
	err := row.Scan(&o.ID, &o.BuyerID, &totalStr, &o.Currency, &o.PaymentRef, &status,
		&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.PostalCode, &o.ShippingAddress.Country,
		&o.NeedsReview, &o.ReviewReason,
		&o.CreatedAt, &o.UpdatedAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.Status(status)
	o.TotalAmount, err = decimal.NewFromString(totalStr)
	if err != nil {
		return domain.Order{}, fmt.Errorf("parse total %q: %w", totalStr, err)
	}
	return o, nil
}

func (r *OrderRepo) loadItems(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, name, unit_price::text, quantity, unfulfilled
		FROM order_items WHERE order_id = $1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var (
			item     domain.LineItem
			priceStr string
		)
		if err := rows.Scan(&item.ProductID, &item.Name, &priceStr, &item.Quantity, &item.Unfulfilled); err != nil {
			return nil, err
		}
		item.UnitPrice, err = decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("parse unit price %q: %w", priceStr, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// EnsureSchema creates the order tables if absent. The unique index on
// payment_ref is load-bearing: it is what makes duplicate webhook deliveries
// collapse to a single order.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS orders (
  id               uuid PRIMARY KEY,
  buyer_id         text NOT NULL,
  total_amount     numeric(12,2) NOT NULL,
  currency         text NOT NULL,
  payment_ref      text NOT NULL UNIQUE,
  status           text NOT NULL,
  ship_street      text NOT NULL DEFAULT '',
  ship_city        text NOT NULL DEFAULT '',
  ship_state       text NOT NULL DEFAULT '',
  ship_postal_code text NOT NULL DEFAULT '',
  ship_country     text NOT NULL DEFAULT '',
  needs_review     boolean NOT NULL DEFAULT false,
  review_reason    text NOT NULL DEFAULT '',
  created_at       timestamptz NOT NULL DEFAULT now(),
  updated_at       timestamptz NOT NULL DEFAULT now(),
  shipped_at       timestamptz,
  delivered_at     timestamptz,
  cancelled_at     timestamptz
);
CREATE INDEX IF NOT EXISTS orders_buyer_idx  ON orders (buyer_id, created_at DESC);
CREATE INDEX IF NOT EXISTS orders_status_idx ON orders (status);
CREATE INDEX IF NOT EXISTS orders_review_idx ON orders (needs_review) WHERE needs_review;
CREATE TABLE IF NOT EXISTS order_items (
  order_id    uuid NOT NULL REFERENCES orders(id),
  product_id  uuid NOT NULL,
  name        text NOT NULL,
  unit_price  numeric(12,2) NOT NULL,
  quantity    integer NOT NULL CHECK (quantity > 0),
  unfulfilled boolean NOT NULL DEFAULT false,
  PRIMARY KEY (order_id, product_id)
);`)
	return err
}
