package app

import (
	"context"

	"github.com/dwikikusuma/shop-fulfillment/internal/cart/domain"
)

type CartRepo interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Create(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	AddItem(ctx context.Context, item domain.CartItem, cartID string) error
	SetItemQuantity(ctx context.Context, cartID string, item domain.CartItem) error
	RemoveItem(ctx context.Context, cartID string, productID string) error
	Clear(ctx context.Context, cartID string) error
}
