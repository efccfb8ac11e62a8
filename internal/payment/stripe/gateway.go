// Package stripe adapts the payment.Gateway contract onto Stripe payment
// intents and signed webhooks.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/dwikikusuma/shop-fulfillment/internal/payment"
	"github.com/dwikikusuma/shop-fulfillment/pkg/errs"
)

type Gateway struct {
	api           *client.API
	webhookSecret string
}

// New constructs a gateway with its own API client handle; no process-wide
// Stripe key is set.
func New(secretKey, webhookSecret string) *Gateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Gateway{api: api, webhookSecret: webhookSecret}
}

var _ payment.Gateway = (*Gateway)(nil)

func (g *Gateway) CreateIntent(ctx context.Context, amount int64, currency, customerRef string, meta payment.IntentMetadata) (payment.Intent, error) {
	encoded, err := meta.Encode()
	if err != nil {
		return payment.Intent{}, err
	}

	params := &stripeapi.PaymentIntentParams{
		Amount:   stripeapi.Int64(amount),
		Currency: stripeapi.String(currency),
		AutomaticPaymentMethods: &stripeapi.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripeapi.Bool(true),
		},
	}
	params.Context = ctx
	if customerRef != "" {
		params.Customer = stripeapi.String(customerRef)
	}
	for k, v := range encoded {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return payment.Intent{}, errs.Wrap(errs.KindDependency, "INTENT_CREATE_FAILED", "payment provider rejected intent", err)
	}
	return payment.Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *Gateway) VerifyWebhook(rawPayload []byte, sigHeader string) (payment.Event, error) {
	ev, err := webhook.ConstructEvent(rawPayload, sigHeader, g.webhookSecret)
	if err != nil {
		return payment.Event{}, fmt.Errorf("%w: %w", payment.ErrSignatureInvalid, err)
	}

	switch string(ev.Type) {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
	default:
		return payment.Event{Kind: payment.EventIgnored}, nil
	}

	var pi stripeapi.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return payment.Event{}, fmt.Errorf("unmarshal payment intent: %w", err)
	}

	meta, err := payment.DecodeMetadata(pi.Metadata)
	if err != nil {
		return payment.Event{}, err
	}

	out := payment.Event{
		PaymentRef: pi.ID,
		Currency:   string(pi.Currency),
		Metadata:   meta,
	}
	if string(ev.Type) == "payment_intent.succeeded" {
		out.Kind = payment.EventPaymentSucceeded
		out.AmountCaptured = pi.AmountReceived
	} else {
		out.Kind = payment.EventPaymentFailed
		out.AmountCaptured = pi.Amount
		if pi.LastPaymentError != nil {
			out.FailureMessage = pi.LastPaymentError.Msg
		}
	}
	return out, nil
}

func (g *Gateway) Refund(ctx context.Context, paymentRef, reason string) error {
	params := &stripeapi.RefundParams{
		PaymentIntent: stripeapi.String(paymentRef),
	}
	params.Context = ctx
	if reason != "" {
		params.Reason = stripeapi.String(reason)
	}

	_, err := g.api.Refunds.New(params)
	if err == nil {
		return nil
	}

	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Code {
		case stripeapi.ErrorCodeChargeAlreadyRefunded, stripeapi.ErrorCodeChargeDisputed:
			return fmt.Errorf("%w: %s", payment.ErrNotRefundable, stripeErr.Code)
		}
	}
	// Includes timeouts: outcome unknown, caller must not proceed as if the
	// money moved back.
	return errs.Wrap(errs.KindDependency, "REFUND_FAILED", "refund call did not confirm", err)
}
