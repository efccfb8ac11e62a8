package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwikikusuma/shop-fulfillment/internal/identity"
	"github.com/dwikikusuma/shop-fulfillment/internal/notification"
	orderdomain "github.com/dwikikusuma/shop-fulfillment/internal/order/domain"
	"github.com/dwikikusuma/shop-fulfillment/internal/payment"
)

func seedOrder(h *harness, id string, status orderdomain.Status, age time.Duration) orderdomain.Order {
	o := orderdomain.Order{
		ID:      id,
		BuyerID: "buyer-1",
		Items: []orderdomain.LineItem{
			{ProductID: "p1", Name: "Keyboard", Quantity: 2, UnitPrice: price("20.00")},
		},
		TotalAmount: price("40.00"),
		Currency:    "usd",
		PaymentRef:  "pi_" + id,
		Status:      status,
		CreatedAt:   time.Now().UTC().Add(-age),
	}
	h.orders.Seed(o)
	h.gateway.RegisterCharge(o.PaymentRef, 4000, "usd")
	return o
}

func TestCancel_RefundsAndRestoresStock(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 8},
	)
	o := seedOrder(h, "ord-1", orderdomain.StatusPaid, time.Hour)

	res, err := h.svc.Cancel(context.Background(), buyer, o.ID)
	require.NoError(t, err)
	assert.True(t, res.Refunded)
	assert.Equal(t, orderdomain.StatusCancelled, res.Order.Status)
	require.NotNil(t, res.Order.CancelledAt)

	assert.Equal(t, []string{o.PaymentRef}, h.gateway.Refunds())
	assert.Equal(t, int32(10), h.store.stockOf("p1"))
	assert.Contains(t, h.events.types(), "order.cancelled")

	notes := h.notifier.byKind(notification.KindOrderCancelled)
	require.Len(t, notes, 1)
	assert.True(t, notes[0].Payload.Refunded)
}

func TestCancel_SkipsRestoreForUnfulfilledLines(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 10},
		Product{ID: "p2", Name: "Mouse", Currency: "usd", Price: price("5.00"), Stock: 1},
	)
	meta := snapshot(
		payment.CartLine{ProductID: "p1", Name: "Keyboard", Quantity: 1, UnitPrice: price("20.00")},
		payment.CartLine{ProductID: "p2", Name: "Mouse", Quantity: 3, UnitPrice: price("5.00")},
	)
	payload, sig, err := h.gateway.SignedEvent("payment_intent.succeeded", "pi_partial", 3500, "usd", meta)
	require.NoError(t, err)
	require.NoError(t, h.svc.HandleWebhook(context.Background(), payload, sig))
	h.gateway.RegisterCharge("pi_partial", 3500, "usd")

	o, err := h.orders.GetByPaymentRef(context.Background(), "pi_partial")
	require.NoError(t, err)
	require.True(t, o.NeedsReview)
	require.Equal(t, int32(1), h.store.stockOf("p2"))

	res, err := h.svc.Cancel(context.Background(), buyer, o.ID)
	require.NoError(t, err)
	assert.True(t, res.Refunded)

	// Only the line that actually took stock is restored. The failed line
	// was never decremented, so restoring it would mint inventory.
	assert.Equal(t, int32(10), h.store.stockOf("p1"))
	assert.Equal(t, int32(1), h.store.stockOf("p2"))
}

func TestCancel_OnlyOwnerMayCancel(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 8},
	)
	o := seedOrder(h, "ord-1", orderdomain.StatusPaid, time.Hour)

	other := identity.Identity{ID: "buyer-2", Role: identity.RoleBuyer}
	_, err := h.svc.Cancel(context.Background(), other, o.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Empty(t, h.gateway.Refunds())
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 8},
	)
	o := seedOrder(h, "ord-1", orderdomain.StatusCancelled, time.Hour)

	_, err := h.svc.Cancel(context.Background(), buyer, o.ID)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestCancel_ShippedIsPastThePointOfNoReturn(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 8},
	)
	o := seedOrder(h, "ord-1", orderdomain.StatusShipped, time.Hour)

	_, err := h.svc.Cancel(context.Background(), buyer, o.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Empty(t, h.gateway.Refunds())
}

func TestCancel_WindowExpired(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 8},
	)
	o := seedOrder(h, "ord-1", orderdomain.StatusPaid, 48*time.Hour)

	_, err := h.svc.Cancel(context.Background(), buyer, o.ID)
	assert.ErrorIs(t, err, ErrWindowExpired)
	assert.Empty(t, h.gateway.Refunds())
}

func TestCancel_RefundFailureAbortsEverything(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 8},
	)
	o := seedOrder(h, "ord-1", orderdomain.StatusPaid, time.Hour)
	h.gateway.RefundErr = errors.New("provider timeout")

	_, err := h.svc.Cancel(context.Background(), buyer, o.ID)
	require.Error(t, err)

	// No local mutation may happen when the refund outcome is not success.
	got, err := h.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPaid, got.Status)
	assert.Equal(t, int32(8), h.store.stockOf("p1"))
	assert.Empty(t, h.notifier.sent)
}

func TestCancel_StockRestoreFailureStillCancels(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 8},
	)
	o := seedOrder(h, "ord-1", orderdomain.StatusPaid, time.Hour)
	h.store.failIncrement["p1"] = errors.New("ledger down")

	// The refund already happened; the cancellation must not be rolled back.
	res, err := h.svc.Cancel(context.Background(), buyer, o.ID)
	require.NoError(t, err)
	assert.True(t, res.Refunded)
	assert.Equal(t, orderdomain.StatusCancelled, res.Order.Status)
	assert.Equal(t, int32(8), h.store.stockOf("p1"))
}

func TestCancel_PendingOrderSkipsRefund(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 8},
	)
	o := seedOrder(h, "ord-1", orderdomain.StatusPending, time.Hour)

	res, err := h.svc.Cancel(context.Background(), buyer, o.ID)
	require.NoError(t, err)
	assert.False(t, res.Refunded)
	assert.Equal(t, orderdomain.StatusCancelled, res.Order.Status)
	assert.Empty(t, h.gateway.Refunds())

	// Nothing was charged or decremented for a Pending order, so nothing is
	// restored either.
	assert.Equal(t, int32(8), h.store.stockOf("p1"))

	notes := h.notifier.byKind(notification.KindOrderCancelled)
	require.Len(t, notes, 1)
	assert.False(t, notes[0].Payload.Refunded)
}
