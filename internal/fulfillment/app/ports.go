package app

import (
	"context"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ProductID string
	Quantity  int32
}

type CartReader interface {
	GetCart(ctx context.Context, userID string) ([]CartItem, error)
}

type Product struct {
	ID       string
	Name     string
	Currency string
	Price    decimal.Decimal
	Stock    int32
}

type CatalogReader interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
}

// StockLedger exposes the atomic stock operations. ReserveCheck is advisory
// (read-then-decide); Decrement is the authoritative conditional update.
type StockLedger interface {
	ReserveCheck(ctx context.Context, productID string, qty int32) error
	Decrement(ctx context.Context, productID string, qty int32) error
	Increment(ctx context.Context, productID string, qty int32) error
}

// UserDirectory resolves notification recipients. The recipient is always
// derived from the order's buyer, never from ambient request state.
type UserDirectory interface {
	Email(ctx context.Context, userID string) (string, error)
}
