package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	cartdomain "github.com/dwikikusuma/shop-fulfillment/internal/cart/domain"
	catalogdomain "github.com/dwikikusuma/shop-fulfillment/internal/catalog/domain"
	orderdomain "github.com/dwikikusuma/shop-fulfillment/internal/order/domain"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Stock       int32           `json:"stock"`
	SellerID    string          `json:"seller_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toProductJSON(p catalogdomain.Product) productJSON {
	return productJSON{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Currency:    p.Currency,
		Stock:       p.Stock,
		SellerID:    p.SellerID,
		CreatedAt:   p.CreatedAt,
	}
}

type cartItemJSON struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type cartJSON struct {
	ID    string         `json:"id"`
	Items []cartItemJSON `json:"items"`
}

func toCartJSON(c cartdomain.Cart) cartJSON {
	out := cartJSON{ID: c.ID, Items: make([]cartItemJSON, 0, len(c.Items))}
	for _, it := range c.Items {
		out.Items = append(out.Items, cartItemJSON{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

type orderItemJSON struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type orderJSON struct {
	ID           string          `json:"id"`
	BuyerID      string          `json:"buyer_id"`
	Items        []orderItemJSON `json:"items"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Currency     string          `json:"currency"`
	Status       string          `json:"status"`
	NeedsReview  bool            `json:"needs_review,omitempty"`
	ReviewReason string          `json:"review_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ShippedAt    *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt  *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
}

func toOrderJSON(o orderdomain.Order) orderJSON {
	items := make([]orderItemJSON, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemJSON{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return orderJSON{
		ID:           o.ID,
		BuyerID:      o.BuyerID,
		Items:        items,
		TotalAmount:  o.TotalAmount,
		Currency:     o.Currency,
		Status:       string(o.Status),
		NeedsReview:  o.NeedsReview,
		ReviewReason: o.ReviewReason,
		CreatedAt:    o.CreatedAt,
		ShippedAt:    o.ShippedAt,
		DeliveredAt:  o.DeliveredAt,
		CancelledAt:  o.CancelledAt,
	}
}

func toOrderListJSON(orders []orderdomain.Order) []orderJSON {
	out := make([]orderJSON, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderJSON(o))
	}
	return out
}
