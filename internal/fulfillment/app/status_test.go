package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwikikusuma/shop-fulfillment/internal/identity"
	"github.com/dwikikusuma/shop-fulfillment/internal/notification"
	orderdomain "github.com/dwikikusuma/shop-fulfillment/internal/order/domain"
	"github.com/dwikikusuma/shop-fulfillment/pkg/errs"
)

var admin = identity.Identity{ID: "admin-1", Role: identity.RoleAdmin}

func TestUpdateStatus_AdminShipsOrder(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 8},
	)
	o := seedOrder(h, "ord-1", orderdomain.StatusPaid, time.Hour)

	updated, err := h.svc.UpdateStatus(context.Background(), admin, o.ID, orderdomain.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusShipped, updated.Status)
	require.NotNil(t, updated.ShippedAt)

	assert.Contains(t, h.events.types(), "order.shipped")

	// The recipient comes from the order's buyer, not from the admin caller.
	notes := h.notifier.byKind(notification.KindOrderShipped)
	require.Len(t, notes, 1)
	assert.Equal(t, "buyer-1@example.com", notes[0].Recipient)
}

func TestUpdateStatus_ShippedToDelivered(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 8},
	)
	o := seedOrder(h, "ord-1", orderdomain.StatusShipped, time.Hour)

	updated, err := h.svc.UpdateStatus(context.Background(), admin, o.ID, orderdomain.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusDelivered, updated.Status)
	require.NotNil(t, updated.DeliveredAt)
	assert.Contains(t, h.events.types(), "order.delivered")
}

func TestUpdateStatus_RequiresAdmin(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 8},
	)
	o := seedOrder(h, "ord-1", orderdomain.StatusPaid, time.Hour)

	_, err := h.svc.UpdateStatus(context.Background(), buyer, o.ID, orderdomain.StatusShipped)
	require.Error(t, err)
	assert.Equal(t, errs.KindForbidden, errs.KindOf(err))
}

func TestUpdateStatus_RejectsIllegalTransition(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 8},
	)
	o := seedOrder(h, "ord-1", orderdomain.StatusPaid, time.Hour)

	_, err := h.svc.UpdateStatus(context.Background(), admin, o.ID, orderdomain.StatusDelivered)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = h.svc.UpdateStatus(context.Background(), admin, o.ID, orderdomain.Status("Teleported"))
	assert.ErrorIs(t, err, ErrBadTargetStatus)
}

func TestUpdateStatus_AdminCancelSkipsRefund(t *testing.T) {
	h := newHarness(
		Product{ID: "p1", Name: "Keyboard", Currency: "usd", Price: price("20.00"), Stock: 8},
	)
	o := seedOrder(h, "ord-1", orderdomain.StatusPaid, time.Hour)

	updated, err := h.svc.UpdateStatus(context.Background(), admin, o.ID, orderdomain.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCancelled, updated.Status)

	// The privileged path is an override: no refund, no stock restore.
	assert.Empty(t, h.gateway.Refunds())
	assert.Equal(t, int32(8), h.store.stockOf("p1"))
}
