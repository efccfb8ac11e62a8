package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shop-fulfillment/internal/catalog/app"
	"github.com/dwikikusuma/shop-fulfillment/internal/catalog/domain"
)

type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

var _ app.ProductRepo = (*ProductRepo)(nil)

func (r *ProductRepo) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	id := uuid.NewString()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO products (id, name, description, price, currency, stock, seller_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, name, description, price::text, currency, stock, seller_id, created_at, updated_at`,
		id, p.Name, p.Description, p.Price.String(), p.Currency, p.Stock, p.SellerID)
	return scanProduct(row)
}

func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, price::text, currency, stock, seller_id, created_at, updated_at
		FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, app.ErrNotFound
	}
	return p, err
}

func (r *ProductRepo) List(ctx context.Context, query string, limit int, cursor string) ([]domain.Product, string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, price::text, currency, stock, seller_id, created_at, updated_at
		FROM products
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR id > $2)
		ORDER BY id
		LIMIT $3`, query, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	next := ""
	if len(out) == limit && limit > 0 {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

// DecrementStock is the authoritative stock guard: the condition and the
// update happen in one statement, so concurrent decrements serialize on the
// row and stock can never go negative.
func (r *ProductRepo) DecrementStock(ctx context.Context, productID string, qty int32) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the product is gone or stock was too small; one extra read
		// distinguishes the two for the caller's error taxonomy.
		if _, gerr := r.Get(ctx, productID); gerr != nil {
			return gerr
		}
		return app.ErrInsufficientStock
	}
	return nil
}

func (r *ProductRepo) IncrementStock(ctx context.Context, productID string, qty int32) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1`, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return app.ErrNotFound
	}
	return nil
}

// EnsureSchema creates the products table if absent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS products (
  id          uuid PRIMARY KEY,
  name        text NOT NULL,
  description text NOT NULL DEFAULT '',
  price       numeric(12,2) NOT NULL,
  currency    text NOT NULL,
  stock       integer NOT NULL DEFAULT 0 CHECK (stock >= 0),
  seller_id   text NOT NULL DEFAULT '',
  created_at  timestamptz NOT NULL DEFAULT now(),
  updated_at  timestamptz NOT NULL DEFAULT now()
);`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p        domain.Product
		priceStr string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &priceStr, &p.Currency, &p.Stock, &p.SellerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return domain.Product{}, fmt.Errorf("parse price %q: %w", priceStr, err)
	}
	p.Price = price
	return p, nil
}
