// Package payment defines the provider-facing contract of the fulfillment
// pipeline. The production adapter wraps Stripe; tests use the deterministic
// fake in paytest. Amounts cross this boundary in minor units because that
// is what providers settle in.
package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shop-fulfillment/pkg/errs"
)

var (
	// ErrSignatureInvalid is an authentication failure, not a parse error:
	// nothing downstream may act on the payload.
	ErrSignatureInvalid = errs.New(errs.KindUnauthorized, "WEBHOOK_SIGNATURE_INVALID", "webhook signature verification failed")

	// ErrNotRefundable means the provider rejected the refund outright
	// (already refunded, charge disputed). Not retryable.
	ErrNotRefundable = errs.New(errs.KindConflict, "PAYMENT_NOT_REFUNDABLE", "charge cannot be refunded")
)

// CartLine is one frozen entry of the cart snapshot. UnitPrice is captured
// at intent creation and never re-read from the catalog.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

// IntentMetadata rides on the payment intent as opaque provider metadata and
// comes back untouched on the webhook. It is the sole source of truth for
// what was actually paid for.
type IntentMetadata struct {
	BuyerID string
	Cart    []CartLine
}

const (
	metaKeyBuyerID = "buyer_id"
	metaKeyCart    = "cart"
)

// Encode flattens the metadata into the string map providers accept.
func (m IntentMetadata) Encode() (map[string]string, error) {
	cart, err := json.Marshal(m.Cart)
	if err != nil {
		return nil, fmt.Errorf("marshal cart snapshot: %w", err)
	}
	return map[string]string{
		metaKeyBuyerID: m.BuyerID,
		metaKeyCart:    string(cart),
	}, nil
}

// DecodeMetadata reverses Encode on the webhook side.
func DecodeMetadata(raw map[string]string) (IntentMetadata, error) {
	m := IntentMetadata{BuyerID: raw[metaKeyBuyerID]}
	if cart := raw[metaKeyCart]; cart != "" {
		if err := json.Unmarshal([]byte(cart), &m.Cart); err != nil {
			return IntentMetadata{}, fmt.Errorf("unmarshal cart snapshot: %w", err)
		}
	}
	return m, nil
}

type Intent struct {
	ID           string
	ClientSecret string
}

type EventKind string

const (
	EventPaymentSucceeded EventKind = "payment.succeeded"
	EventPaymentFailed    EventKind = "payment.failed"
	// EventIgnored covers provider event types the pipeline does not act on;
	// they are acknowledged so the provider stops retrying.
	EventIgnored EventKind = "ignored"
)

type Event struct {
	Kind       EventKind
	PaymentRef string
	// AmountCaptured is what the provider confirms it captured, in minor
	// units. Financial truth over catalog truth.
	AmountCaptured int64
	Currency       string
	Metadata       IntentMetadata
	FailureMessage string
}

type Gateway interface {
	// CreateIntent registers a charge attempt for amount minor units and
	// returns the id plus the client-side secret needed to complete it.
	CreateIntent(ctx context.Context, amount int64, currency, customerRef string, meta IntentMetadata) (Intent, error)

	// VerifyWebhook authenticates rawPayload against sigHeader and parses it
	// into an Event. The raw bytes must arrive exactly as the provider sent
	// them; any re-serialization upstream breaks the signature.
	VerifyWebhook(rawPayload []byte, sigHeader string) (Event, error)

	// Refund reverses the full captured amount of the referenced charge.
	// An unknown outcome (timeout) is an error; callers must not treat it
	// as success.
	Refund(ctx context.Context, paymentRef, reason string) error
}
