// Package adapter binds the fulfillment orchestrator's ports to the cart and
// catalog services. The orchestrator only sees its own narrow types; these
// adapters do the translation.
package adapter

import (
	"context"
	"errors"

	cartapp "github.com/dwikikusuma/shop-fulfillment/internal/cart/app"
	catalogapp "github.com/dwikikusuma/shop-fulfillment/internal/catalog/app"
	fulfillapp "github.com/dwikikusuma/shop-fulfillment/internal/fulfillment/app"
)

type CartServiceReader struct {
	svc *cartapp.Service
}

func NewCartServiceReader(svc *cartapp.Service) *CartServiceReader {
	return &CartServiceReader{svc: svc}
}

var _ fulfillapp.CartReader = (*CartServiceReader)(nil)

// GetCart treats a missing cart as an empty one; the orchestrator rejects
// empty carts itself.
func (a *CartServiceReader) GetCart(ctx context.Context, userID string) ([]fulfillapp.CartItem, error) {
	cart, err := a.svc.GetCart(ctx, userID)
	if errors.Is(err, cartapp.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	items := make([]fulfillapp.CartItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, fulfillapp.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return items, nil
}

// CatalogServiceReader exposes the catalog as both the pricing source and the
// stock ledger; they are backed by the same product rows.
type CatalogServiceReader struct {
	svc *catalogapp.Service
}

func NewCatalogServiceReader(svc *catalogapp.Service) *CatalogServiceReader {
	return &CatalogServiceReader{svc: svc}
}

var (
	_ fulfillapp.CatalogReader = (*CatalogServiceReader)(nil)
	_ fulfillapp.StockLedger   = (*CatalogServiceReader)(nil)
)

func (a *CatalogServiceReader) GetProduct(ctx context.Context, productID string) (fulfillapp.Product, error) {
	p, err := a.svc.GetProduct(ctx, productID)
	if err != nil {
		return fulfillapp.Product{}, err
	}
	return fulfillapp.Product{
		ID:       p.ID,
		Name:     p.Name,
		Currency: p.Currency,
		Price:    p.Price,
		Stock:    p.Stock,
	}, nil
}

func (a *CatalogServiceReader) ReserveCheck(ctx context.Context, productID string, qty int32) error {
	return a.svc.ReserveCheck(ctx, productID, qty)
}

func (a *CatalogServiceReader) Decrement(ctx context.Context, productID string, qty int32) error {
	return a.svc.Decrement(ctx, productID, qty)
}

func (a *CatalogServiceReader) Increment(ctx context.Context, productID string, qty int32) error {
	return a.svc.Increment(ctx, productID, qty)
}
