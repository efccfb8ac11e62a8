// Package notification delivers buyer-facing messages. Delivery is always
// best effort: the orchestrator records failures but never lets them roll
// back or fail a transition.
package notification

import (
	"context"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindPaymentStatus     Kind = "payment_status"
	KindOrderConfirmation Kind = "order_confirmation"
	KindOrderShipped      Kind = "order_shipped"
	KindOrderDelivered    Kind = "order_delivered"
	KindOrderCancelled    Kind = "order_cancelled"
)

type ItemLine struct {
	Name     string
	Quantity int32
}

// Payload carries the fields the templates render; unused fields stay zero.
type Payload struct {
	OrderID        string
	Amount         decimal.Decimal
	Currency       string
	PaymentSuccess bool
	Refunded       bool
	Items          []ItemLine
}

type Notifier interface {
	Notify(ctx context.Context, kind Kind, recipient string, p Payload) error
}
