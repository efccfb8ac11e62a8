// Package paytest is an in-memory payment.Gateway with deterministic
// HMAC-SHA256 webhook signatures, for tests and local development.
package paytest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dwikikusuma/shop-fulfillment/internal/payment"
	"github.com/dwikikusuma/shop-fulfillment/pkg/errs"
)

type Charge struct {
	Amount   int64
	Currency string
	Refunded bool
}

type Fake struct {
	secret []byte

	mu      sync.Mutex
	seq     int
	intents map[string]payment.IntentMetadata
	charges map[string]*Charge
	refunds []string

	// RefundErr, when set, is returned by Refund to simulate provider
	// failures or timeouts.
	RefundErr error
}

func New(secret string) *Fake {
	return &Fake{
		secret:  []byte(secret),
		intents: make(map[string]payment.IntentMetadata),
		charges: make(map[string]*Charge),
	}
}

var _ payment.Gateway = (*Fake)(nil)

func (f *Fake) CreateIntent(ctx context.Context, amount int64, currency, customerRef string, meta payment.IntentMetadata) (payment.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	id := fmt.Sprintf("pi_fake_%03d", f.seq)
	f.intents[id] = meta
	f.charges[id] = &Charge{Amount: amount, Currency: currency}
	return payment.Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

// envelope is the fake provider's wire format.
type envelope struct {
	Type           string            `json:"type"`
	ID             string            `json:"id"`
	AmountReceived int64             `json:"amount_received"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata"`
	FailureMessage string            `json:"failure_message,omitempty"`
}

func (f *Fake) VerifyWebhook(rawPayload []byte, sigHeader string) (payment.Event, error) {
	if !hmac.Equal([]byte(f.Sign(rawPayload)), []byte(sigHeader)) {
		return payment.Event{}, payment.ErrSignatureInvalid
	}

	var env envelope
	if err := json.Unmarshal(rawPayload, &env); err != nil {
		return payment.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}

	meta, err := payment.DecodeMetadata(env.Metadata)
	if err != nil {
		return payment.Event{}, err
	}

	ev := payment.Event{
		PaymentRef:     env.ID,
		AmountCaptured: env.AmountReceived,
		Currency:       env.Currency,
		Metadata:       meta,
		FailureMessage: env.FailureMessage,
	}
	switch env.Type {
	case "payment_intent.succeeded":
		ev.Kind = payment.EventPaymentSucceeded
	case "payment_intent.payment_failed":
		ev.Kind = payment.EventPaymentFailed
	default:
		ev.Kind = payment.EventIgnored
	}
	return ev, nil
}

func (f *Fake) Refund(ctx context.Context, paymentRef, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.RefundErr != nil {
		return f.RefundErr
	}
	ch, ok := f.charges[paymentRef]
	if !ok {
		return errs.Newf(errs.KindDependency, "CHARGE_UNKNOWN", "no charge for %s", paymentRef)
	}
	if ch.Refunded {
		return payment.ErrNotRefundable
	}
	ch.Refunded = true
	f.refunds = append(f.refunds, paymentRef)
	return nil
}

// Sign computes the deterministic signature header for a payload.
func (f *Fake) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, f.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedEvent renders and signs a provider event, so tests can exercise the
// webhook path end to end.
func (f *Fake) SignedEvent(eventType, paymentRef string, amount int64, currency string, meta payment.IntentMetadata) (payload []byte, sig string, err error) {
	encoded, err := meta.Encode()
	if err != nil {
		return nil, "", err
	}
	payload, err = json.Marshal(envelope{
		Type:           eventType,
		ID:             paymentRef,
		AmountReceived: amount,
		Currency:       currency,
		Metadata:       encoded,
	})
	if err != nil {
		return nil, "", err
	}
	return payload, f.Sign(payload), nil
}

// RegisterCharge seeds provider-side charge state for payment refs the fake
// did not mint itself.
func (f *Fake) RegisterCharge(paymentRef string, amount int64, currency string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charges[paymentRef] = &Charge{Amount: amount, Currency: currency}
}

// Refunds returns the payment refs refunded so far, in order.
func (f *Fake) Refunds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refunds...)
}

// ChargeFor exposes charge state for assertions.
func (f *Fake) ChargeFor(paymentRef string) (Charge, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.charges[paymentRef]
	if !ok {
		return Charge{}, false
	}
	return *ch, true
}

// Metadata returns what was attached to a created intent.
func (f *Fake) Metadata(intentID string) (payment.IntentMetadata, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.intents[intentID]
	return m, ok
}
