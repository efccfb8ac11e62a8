package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwikikusuma/shop-fulfillment/internal/notification"
	orderapp "github.com/dwikikusuma/shop-fulfillment/internal/order/app"
	orderdomain "github.com/dwikikusuma/shop-fulfillment/internal/order/domain"
	ordermem "github.com/dwikikusuma/shop-fulfillment/internal/order/infra/memory"
	"github.com/dwikikusuma/shop-fulfillment/internal/payment"
	"github.com/dwikikusuma/shop-fulfillment/pkg/errs"
)

func TestHandleWebhook_PaymentSucceededCreatesOrder(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 10},
		Product{ID: "p2", Name: "Mouse", Currency: "usd", Price: price("5.00"), Stock: 4},
	)
	meta := snapshot(
		payment.CartLine{ProductID: "p1", Name: "Keyboard", Quantity: 1, UnitPrice: price("20.00")},
		payment.CartLine{ProductID: "p2", Name: "Mouse", Quantity: 1, UnitPrice: price("5.00")},
	)

	payload, sig, err := h.gateway.SignedEvent("payment_intent.succeeded", "pi_abc", 2500, "usd", meta)
	require.NoError(t, err)
	require.NoError(t, h.svc.HandleWebhook(context.Background(), payload, sig))

	o, err := h.orders.GetByPaymentRef(context.Background(), "pi_abc")
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPaid, o.Status)
	assert.Equal(t, "buyer-1", o.BuyerID)
	assert.Equal(t, "25.00", o.TotalAmount.StringFixed(2))
	assert.False(t, o.NeedsReview)
	require.Len(t, o.Items, 2)

	assert.Equal(t, int32(9), h.store.stockOf("p1"))
	assert.Equal(t, int32(3), h.store.stockOf("p2"))

	assert.Contains(t, h.events.types(), "order.paid")

	status := h.notifier.byKind(notification.KindPaymentStatus)
	require.Len(t, status, 1)
	assert.Equal(t, "buyer-1@example.com", status[0].Recipient)
	assert.True(t, status[0].Payload.PaymentSuccess)

	confirm := h.notifier.byKind(notification.KindOrderConfirmation)
	require.Len(t, confirm, 1)
	assert.Equal(t, o.ID, confirm[0].Payload.OrderID)
	assert.Len(t, confirm[0].Payload.Items, 2)
}

func TestHandleWebhook_RejectsBadSignature(t *testing.T) {
	h := newHarness()

	payload, _, err := h.gateway.SignedEvent("payment_intent.succeeded", "pi_abc", 2500, "usd", snapshot())
	require.NoError(t, err)

	err = h.svc.HandleWebhook(context.Background(), payload, "deadbeef")
	require.Error(t, err)
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))

	_, err = h.orders.GetByPaymentRef(context.Background(), "pi_abc")
	assert.Error(t, err)
}

func TestHandleWebhook_DuplicateDeliveryIsIdempotent(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 10},
	)
	meta := snapshot(
		payment.CartLine{ProductID: "p1", Name: "Keyboard", Quantity: 2, UnitPrice: price("20.00")},
	)
	payload, sig, err := h.gateway.SignedEvent("payment_intent.succeeded", "pi_dup", 4000, "usd", meta)
	require.NoError(t, err)

	require.NoError(t, h.svc.HandleWebhook(context.Background(), payload, sig))
	require.NoError(t, h.svc.HandleWebhook(context.Background(), payload, sig))

	orders, err := h.orders.ListByBuyer(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	// Exactly one decrement across both deliveries.
	assert.Equal(t, int32(8), h.store.stockOf("p1"))
}

// missingPrecheckRepo hides orders from GetByPaymentRef, simulating the
// window where a concurrent delivery of the same event has not committed yet:
// every delivery passes the cheap duplicate guard and races on the insert.
type missingPrecheckRepo struct {
	*ordermem.OrderRepo
}

func (r *missingPrecheckRepo) GetByPaymentRef(ctx context.Context, ref string) (orderdomain.Order, error) {
	return orderdomain.Order{}, orderapp.ErrNotFound
}

func TestHandleWebhook_ConcurrentDuplicateReturnsStock(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 10},
		Product{ID: "p2", Name: "Mouse", Currency: "usd", Price: price("5.00"), Stock: 1},
	)
	svc := NewService(Deps{
		Cart:     h.cart,
		Catalog:  h.store,
		Stock:    h.store,
		Orders:   &missingPrecheckRepo{h.orders},
		Gateway:  h.gateway,
		Users:    &fakeUsers{emails: map[string]string{"buyer-1": "buyer-1@example.com"}},
		Notifier: h.notifier,
		Events:   h.events,
	}, 0)

	meta := snapshot(
		payment.CartLine{ProductID: "p1", Name: "Keyboard", Quantity: 2, UnitPrice: price("20.00")},
		payment.CartLine{ProductID: "p2", Name: "Mouse", Quantity: 3, UnitPrice: price("5.00")},
	)
	payload, sig, err := h.gateway.SignedEvent("payment_intent.succeeded", "pi_race", 5500, "usd", meta)
	require.NoError(t, err)

	// Both deliveries decrement before inserting; the loser of the unique
	// constraint must hand its stock back.
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, sig))
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, sig))

	orders, err := h.orders.ListByBuyer(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	// One net decrement for the fulfillable line, and no compensation for
	// the shortfall line that never took stock.
	assert.Equal(t, int32(8), h.store.stockOf("p1"))
	assert.Equal(t, int32(1), h.store.stockOf("p2"))
}

func TestHandleWebhook_StockShortfallFlagsReview(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 10},
		Product{ID: "p2", Name: "Mouse", Currency: "usd", Price: price("5.00"), Stock: 1},
	)
	meta := snapshot(
		payment.CartLine{ProductID: "p1", Name: "Keyboard", Quantity: 1, UnitPrice: price("20.00")},
		payment.CartLine{ProductID: "p2", Name: "Mouse", Quantity: 3, UnitPrice: price("5.00")},
	)
	payload, sig, err := h.gateway.SignedEvent("payment_intent.succeeded", "pi_short", 3500, "usd", meta)
	require.NoError(t, err)

	// Money is captured; the order must exist even though stock cannot cover it.
	require.NoError(t, h.svc.HandleWebhook(context.Background(), payload, sig))

	o, err := h.orders.GetByPaymentRef(context.Background(), "pi_short")
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPaid, o.Status)
	assert.True(t, o.NeedsReview)
	assert.Contains(t, o.ReviewReason, "p2")
	require.Len(t, o.Items, 2)
	assert.False(t, o.Items[0].Unfulfilled)
	assert.True(t, o.Items[1].Unfulfilled)

	assert.Equal(t, int32(9), h.store.stockOf("p1"))
	assert.Equal(t, int32(1), h.store.stockOf("p2"))

	assert.Contains(t, h.events.types(), "order.needs_review")

	review, err := h.orders.ListNeedingReview(context.Background())
	require.NoError(t, err)
	assert.Len(t, review, 1)
}

func TestHandleWebhook_CapturedAmountWins(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 10},
	)
	meta := snapshot(
		payment.CartLine{ProductID: "p1", Name: "Keyboard", Quantity: 1, UnitPrice: price("20.00")},
	)
	// Provider reports a different captured amount than the snapshot total.
	payload, sig, err := h.gateway.SignedEvent("payment_intent.succeeded", "pi_amt", 1800, "usd", meta)
	require.NoError(t, err)
	require.NoError(t, h.svc.HandleWebhook(context.Background(), payload, sig))

	o, err := h.orders.GetByPaymentRef(context.Background(), "pi_amt")
	require.NoError(t, err)
	assert.Equal(t, "18.00", o.TotalAmount.StringFixed(2))
}

func TestHandleWebhook_PaymentFailedNotifiesOnly(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 10},
	)
	meta := snapshot(
		payment.CartLine{ProductID: "p1", Name: "Keyboard", Quantity: 1, UnitPrice: price("20.00")},
	)
	payload, sig, err := h.gateway.SignedEvent("payment_intent.payment_failed", "pi_fail", 0, "usd", meta)
	require.NoError(t, err)
	require.NoError(t, h.svc.HandleWebhook(context.Background(), payload, sig))

	_, err = h.orders.GetByPaymentRef(context.Background(), "pi_fail")
	assert.Error(t, err)
	assert.Equal(t, int32(10), h.store.stockOf("p1"))

	status := h.notifier.byKind(notification.KindPaymentStatus)
	require.Len(t, status, 1)
	assert.False(t, status[0].Payload.PaymentSuccess)
}

func TestHandleWebhook_IgnoresUnknownEventTypes(t *testing.T) {
	h := newHarness()

	payload, sig, err := h.gateway.SignedEvent("charge.updated", "pi_x", 0, "usd", snapshot())
	require.NoError(t, err)
	require.NoError(t, h.svc.HandleWebhook(context.Background(), payload, sig))

	assert.Empty(t, h.events.types())
	assert.Empty(t, h.notifier.sent)
}

func TestHandleWebhook_MissingSnapshotFlagsReview(t *testing.T) {
	h := newHarness()

	payload, sig, err := h.gateway.SignedEvent("payment_intent.succeeded", "pi_empty", 1200, "usd", payment.IntentMetadata{BuyerID: "buyer-1"})
	require.NoError(t, err)
	require.NoError(t, h.svc.HandleWebhook(context.Background(), payload, sig))

	o, err := h.orders.GetByPaymentRef(context.Background(), "pi_empty")
	require.NoError(t, err)
	assert.True(t, o.NeedsReview)
	assert.Equal(t, "12.00", o.TotalAmount.StringFixed(2))
}
