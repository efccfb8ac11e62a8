package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the closed order state enumeration. Pending is virtual on the
// happy path: webhook handling creates the row directly in Paid, because
// order creation is the payment-success transition.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusPaid      Status = "Paid"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// transitions is the single place legal moves are declared; every status
// write goes through CanTransition instead of ad hoc string checks.
var transitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {},
	StatusCancelled: {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether a buyer cancellation is still possible from
// this status. Shipped and Delivered are past the point of no return.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusPaid
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

type LineItem struct {
	ProductID string
	Name      string
	Quantity  int32
	// UnitPrice is the price captured in the cart snapshot at intent
	// creation; the historical total never follows later catalog edits.
	UnitPrice decimal.Decimal
	// Unfulfilled marks a line whose stock decrement never applied when the
	// payment was captured. Cancellation must not restore stock for such
	// lines: there was no matching decrement to undo.
	Unfulfilled bool
}

func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt32(li.Quantity))
}

type Address struct {
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
}

type Order struct {
	ID      string
	BuyerID string
	Items   []LineItem

	// TotalAmount is what the provider confirms was captured, not a
	// recomputation from the catalog.
	TotalAmount decimal.Decimal
	Currency    string

	// PaymentRef correlates to exactly one provider charge; unique across
	// all orders at the storage layer.
	PaymentRef string

	Status          Status
	ShippingAddress Address

	// NeedsReview marks orders whose stock decrement could not be fully
	// applied after capture; they need manual reconciliation, never an
	// automatic retry.
	NeedsReview  bool
	ReviewReason string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}
