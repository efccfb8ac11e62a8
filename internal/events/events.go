// Package events publishes order lifecycle events for downstream consumers
// (analytics, warehouse sync). Publishing is best effort and never blocks
// fulfillment decisions.
package events

import (
	"context"
	"time"
)

const (
	TypeOrderPaid        = "order.paid"
	TypeOrderCancelled   = "order.cancelled"
	TypeOrderShipped     = "order.shipped"
	TypeOrderDelivered   = "order.delivered"
	TypeOrderNeedsReview = "order.needs_review"
)

type Event struct {
	EventID   string         `json:"event_id"`
	OrderID   string         `json:"order_id"`
	Type      string         `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop drops events; used when no broker is configured.
type Nop struct{}

var _ Publisher = Nop{}

func (Nop) Publish(ctx context.Context, ev Event) error { return nil }
func (Nop) Close() error                                { return nil }
