// Package postgres resolves user contact details from the users table that
// the (external) auth service maintains.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dwikikusuma/shop-fulfillment/pkg/errs"
)

var ErrUserNotFound = errs.New(errs.KindNotFound, "USER_NOT_FOUND", "user not found")

type Directory struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

func (d *Directory) Email(ctx context.Context, userID string) (string, error) {
	var email string
	err := d.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return email, err
}

// EnsureSchema creates the users table if absent. Rows are written by the
// auth service; this service only reads.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS users (
  id         text PRIMARY KEY,
  name       text NOT NULL DEFAULT '',
  email      text NOT NULL,
  role       text NOT NULL DEFAULT 'buyer',
  created_at timestamptz NOT NULL DEFAULT now()
);`)
	return err
}
