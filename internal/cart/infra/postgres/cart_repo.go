package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dwikikusuma/shop-fulfillment/internal/cart/app"
	"github.com/dwikikusuma/shop-fulfillment/internal/cart/domain"
)

type CartRepo struct {
	pool *pgxpool.Pool
}

func NewCartRepo(pool *pgxpool.Pool) *CartRepo {
	return &CartRepo{pool: pool}
}

var _ app.CartRepo = (*CartRepo)(nil)

func (r *CartRepo) Get(ctx context.Context, userID string) (domain.Cart, error) {
	var (
		cart   domain.Cart
		status string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, status, created_at, updated_at
		FROM carts WHERE user_id = $1 AND status = $2`, userID, string(domain.StatusActive)).
		Scan(&cart.ID, &cart.UserID, &status, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Cart{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Cart{}, err
	}
	cart.Status = domain.Status(status)

	rows, err := r.pool.Query(ctx, `
		SELECT product_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY added_at`, cart.ID)
	if err != nil {
		return domain.Cart{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return domain.Cart{}, err
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, rows.Err()
}

func (r *CartRepo) Create(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	id := uuid.NewString()
	// The partial unique index on (user_id, status) makes concurrent creates
	// collapse onto one active cart per user.
	_, err := r.pool.Exec(ctx, `
		INSERT INTO carts (id, user_id, status) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) WHERE status = 'ACTIVE' DO NOTHING`,
		id, cart.UserID, string(domain.StatusActive))
	if err != nil {
		return domain.Cart{}, err
	}

	for _, item := range cart.Items {
		if err := r.AddItem(ctx, item, id); err != nil {
			return domain.Cart{}, err
		}
	}
	return r.Get(ctx, cart.UserID)
}

func (r *CartRepo) AddItem(ctx context.Context, item domain.CartItem, cartID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		cartID, item.ProductID, item.Quantity)
	return err
}

func (r *CartRepo) SetItemQuantity(ctx context.Context, cartID string, item domain.CartItem) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE cart_items SET quantity = $3 WHERE cart_id = $1 AND product_id = $2`,
		cartID, item.ProductID, item.Quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return app.ErrNotFound
	}
	return nil
}

func (r *CartRepo) RemoveItem(ctx context.Context, cartID string, productID string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	return err
}

func (r *CartRepo) Clear(ctx context.Context, cartID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}

// EnsureSchema creates the cart tables if absent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS carts (
  id         uuid PRIMARY KEY,
  user_id    text NOT NULL,
  status     text NOT NULL DEFAULT 'ACTIVE',
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS carts_one_active_per_user
  ON carts (user_id) WHERE status = 'ACTIVE';
CREATE TABLE IF NOT EXISTS cart_items (
  cart_id    uuid NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
  product_id uuid NOT NULL,
  quantity   integer NOT NULL CHECK (quantity > 0),
  added_at   timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (cart_id, product_id)
);`)
	return err
}
