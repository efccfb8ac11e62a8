package app

import (
	"context"

	"github.com/dwikikusuma/shop-fulfillment/internal/catalog/domain"
)

type ProductRepo interface {
	Create(ctx context.Context, p domain.Product) (domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
	List(ctx context.Context, query string, limit int, cursor string) ([]domain.Product, string, error)

	// DecrementStock must be a single atomic conditional update: it succeeds
	// only when the current stock covers qty, otherwise it changes nothing
	// and reports ErrInsufficientStock. Never read-then-write.
	DecrementStock(ctx context.Context, productID string, qty int32) error
	IncrementStock(ctx context.Context, productID string, qty int32) error
}
