// Package app holds the fulfillment orchestrator: the state machine that
// turns verified payment events into orders and cancellation requests into
// refunds. It coordinates three independently-failing resources (provider
// charge state, stock counts, order rows) without a distributed transaction;
// the invariants live in the ordering of its steps.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dwikikusuma/shop-fulfillment/internal/events"
	"github.com/dwikikusuma/shop-fulfillment/internal/identity"
	"github.com/dwikikusuma/shop-fulfillment/internal/notification"
	orderapp "github.com/dwikikusuma/shop-fulfillment/internal/order/app"
	orderdomain "github.com/dwikikusuma/shop-fulfillment/internal/order/domain"
	"github.com/dwikikusuma/shop-fulfillment/internal/payment"
	"github.com/dwikikusuma/shop-fulfillment/pkg/errs"
	"github.com/dwikikusuma/shop-fulfillment/pkg/metrics"
)

var (
	ErrEmptyCart        = errs.New(errs.KindValidation, "CART_EMPTY", "cart is empty")
	ErrCurrencyMismatch = errs.New(errs.KindValidation, "CURRENCY_MISMATCH", "cart mixes currencies")

	ErrNotOwner          = errs.New(errs.KindForbidden, "ORDER_NOT_OWNER", "order belongs to another buyer")
	ErrAlreadyCancelled  = errs.New(errs.KindConflict, "ORDER_ALREADY_CANCELLED", "order is already cancelled")
	ErrNotCancellable    = errs.New(errs.KindConflict, "ORDER_NOT_CANCELLABLE", "shipped or delivered orders cannot be cancelled")
	ErrWindowExpired     = errs.New(errs.KindConflict, "CANCEL_WINDOW_EXPIRED", "cancellation window has expired")
	ErrBadTargetStatus   = errs.New(errs.KindValidation, "INVALID_TARGET_STATUS", "unknown target status")
	ErrIllegalTransition = errs.New(errs.KindConflict, "ILLEGAL_TRANSITION", "status transition not allowed")
)

// Deps lists the collaborators the orchestrator drives. Everything is an
// interface so the state machine is testable without postgres or Stripe.
type Deps struct {
	Cart     CartReader
	Catalog  CatalogReader
	Stock    StockLedger
	Orders   orderapp.OrderRepo
	Gateway  payment.Gateway
	Users    UserDirectory
	Notifier notification.Notifier
	Events   events.Publisher
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

type Service struct {
	cart     CartReader
	catalog  CatalogReader
	stock    StockLedger
	orders   orderapp.OrderRepo
	gateway  payment.Gateway
	users    UserDirectory
	notifier notification.Notifier
	events   events.Publisher
	metrics  *metrics.Metrics
	log      *slog.Logger

	cancelWindow  time.Duration
	maxConcurrent int
}

func NewService(deps Deps, cancelWindow time.Duration) *Service {
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if cancelWindow <= 0 {
		cancelWindow = 24 * time.Hour
	}
	return &Service{
		cart:          deps.Cart,
		catalog:       deps.Catalog,
		stock:         deps.Stock,
		orders:        deps.Orders,
		gateway:       deps.Gateway,
		users:         deps.Users,
		notifier:      deps.Notifier,
		events:        deps.Events,
		metrics:       deps.Metrics,
		log:           deps.Log,
		cancelWindow:  cancelWindow,
		maxConcurrent: 10,
	}
}

type IntentResponse struct {
	IntentID     string
	ClientSecret string
	Amount       decimal.Decimal
	Currency     string
}

// CreateIntent prices the buyer's cart from current catalog data and opens a
// payment intent carrying the frozen snapshot as metadata. The client never
// supplies a price; the amount is always derived server-side.
func (s *Service) CreateIntent(ctx context.Context, who identity.Identity) (IntentResponse, error) {
	items, err := s.cart.GetCart(ctx, who.ID)
	if err != nil {
		return IntentResponse{}, err
	}
	if len(items) == 0 {
		return IntentResponse{}, ErrEmptyCart
	}

	lines := make([]payment.CartLine, len(items))
	currencies := make([]string, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for idx := range items {
		idx := idx
		g.Go(func() error {
			it := items[idx]
			if it.Quantity <= 0 {
				return errs.Newf(errs.KindValidation, "INVALID_QUANTITY", "quantity must be positive: %d", it.Quantity)
			}

			product, err := s.catalog.GetProduct(gctx, it.ProductID)
			if err != nil {
				return fmt.Errorf("price product %s: %w", it.ProductID, err)
			}
			if product.Stock < it.Quantity {
				return errs.Newf(errs.KindConflict, "INSUFFICIENT_STOCK",
					"not enough stock for %s: only %d left", product.Name, product.Stock)
			}

			lines[idx] = payment.CartLine{
				ProductID: product.ID,
				Name:      product.Name,
				Quantity:  it.Quantity,
				UnitPrice: product.Price,
			}
			currencies[idx] = product.Currency
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return IntentResponse{}, err
	}

	currency := currencies[0]
	total := decimal.Zero
	for i, line := range lines {
		if currencies[i] != currency {
			return IntentResponse{}, ErrCurrencyMismatch
		}
		total = total.Add(line.LineTotal())
	}

	intent, err := s.gateway.CreateIntent(ctx, toMinorUnits(total), currency, who.ID, payment.IntentMetadata{
		BuyerID: who.ID,
		Cart:    lines,
	})
	if err != nil {
		return IntentResponse{}, err
	}

	s.log.Info("payment intent created",
		slog.String("intent_id", intent.ID),
		slog.String("buyer_id", who.ID),
		slog.String("amount", total.StringFixed(2)),
	)
	return IntentResponse{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       total,
		Currency:     currency,
	}, nil
}

// HandleWebhook verifies and dispatches one provider delivery. The raw bytes
// and signature header must arrive exactly as the provider sent them.
func (s *Service) HandleWebhook(ctx context.Context, rawPayload []byte, sigHeader string) error {
	ev, err := s.gateway.VerifyWebhook(rawPayload, sigHeader)
	if err != nil {
		s.countWebhook("unverified", "rejected")
		return err
	}

	switch ev.Kind {
	case payment.EventPaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, ev)
	case payment.EventPaymentFailed:
		s.countWebhook(string(ev.Kind), "handled")
		s.notify(ctx, notification.KindPaymentStatus, ev.Metadata.BuyerID, notification.Payload{
			Amount:   fromMinorUnits(ev.AmountCaptured),
			Currency: ev.Currency,
		})
		return nil
	default:
		s.countWebhook(string(payment.EventIgnored), "ignored")
		s.log.Debug("ignoring webhook event")
		return nil
	}
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, ev payment.Event) error {
	// Cheap duplicate guard; the unique constraint below is authoritative.
	if _, err := s.orders.GetByPaymentRef(ctx, ev.PaymentRef); err == nil {
		s.countWebhook(string(ev.Kind), "duplicate")
		s.log.Info("duplicate payment event, already handled", slog.String("payment_ref", ev.PaymentRef))
		return nil
	} else if !errors.Is(err, orderapp.ErrNotFound) {
		return err
	}

	shortfalls, failed := s.decrementBatch(ctx, ev.Metadata.Cart)

	items := make([]orderdomain.LineItem, 0, len(ev.Metadata.Cart))
	for _, line := range ev.Metadata.Cart {
		items = append(items, orderdomain.LineItem{
			ProductID:   line.ProductID,
			Name:        line.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Unfulfilled: failed[line.ProductID],
		})
	}

	order := orderdomain.Order{
		BuyerID:     ev.Metadata.BuyerID,
		Items:       items,
		TotalAmount: fromMinorUnits(ev.AmountCaptured),
		Currency:    ev.Currency,
		PaymentRef:  ev.PaymentRef,
		Status:      orderdomain.StatusPaid,
	}
	if len(ev.Metadata.Cart) == 0 {
		shortfalls = append(shortfalls, "cart snapshot missing from intent metadata")
	}
	if len(shortfalls) > 0 {
		// Payment is already captured; refusing to record the order would
		// strand the money. Record it and flag for manual reconciliation.
		order.NeedsReview = true
		order.ReviewReason = strings.Join(shortfalls, "; ")
	}

	created, err := s.orders.Create(ctx, order)
	if errors.Is(err, orderapp.ErrDuplicatePaymentRef) {
		// Lost the race against a concurrent delivery of the same event. The
		// winner owns the stock decrement, so give ours back.
		s.countWebhook(string(ev.Kind), "duplicate")
		s.compensateDecrements(ctx, ev.Metadata.Cart, failed)
		s.log.Info("concurrent duplicate payment event", slog.String("payment_ref", ev.PaymentRef))
		return nil
	}
	if err != nil {
		return fmt.Errorf("create order for %s: %w", ev.PaymentRef, err)
	}

	s.countWebhook(string(ev.Kind), "handled")
	s.log.Info("order created from payment event",
		slog.String("order_id", created.ID),
		slog.String("payment_ref", created.PaymentRef),
		slog.Bool("needs_review", created.NeedsReview),
	)

	s.publish(ctx, events.TypeOrderPaid, created.ID, map[string]any{
		"payment_ref": created.PaymentRef,
		"total":       created.TotalAmount.StringFixed(2),
	})
	if created.NeedsReview {
		s.publish(ctx, events.TypeOrderNeedsReview, created.ID, map[string]any{
			"reason": created.ReviewReason,
		})
	}

	noteItems := make([]notification.ItemLine, 0, len(created.Items))
	for _, it := range created.Items {
		noteItems = append(noteItems, notification.ItemLine{Name: it.Name, Quantity: it.Quantity})
	}
	s.notify(ctx, notification.KindPaymentStatus, created.BuyerID, notification.Payload{
		Amount:         created.TotalAmount,
		Currency:       created.Currency,
		PaymentSuccess: true,
	})
	s.notify(ctx, notification.KindOrderConfirmation, created.BuyerID, notification.Payload{
		OrderID:  created.ID,
		Amount:   created.TotalAmount,
		Currency: created.Currency,
		Items:    noteItems,
	})
	return nil
}

// decrementBatch applies the snapshot's decrements: one advisory pass over
// every line, then conditional decrements for the lines that passed. A line
// that passes the advisory check but loses the conditional update is a
// consistency violation (the batch validated as satisfiable), reported
// distinctly. The failed set is keyed by product id so callers can reason
// about which decrements actually happened.
func (s *Service) decrementBatch(ctx context.Context, cart []payment.CartLine) ([]string, map[string]bool) {
	var shortfalls []string
	failed := make(map[string]bool, len(cart))

	for _, line := range cart {
		if err := s.stock.ReserveCheck(ctx, line.ProductID, line.Quantity); err != nil {
			shortfalls = append(shortfalls, fmt.Sprintf("%s: %v", line.ProductID, err))
			failed[line.ProductID] = true
		}
	}

	for _, line := range cart {
		if failed[line.ProductID] {
			continue
		}
		if err := s.stock.Decrement(ctx, line.ProductID, line.Quantity); err != nil {
			shortfalls = append(shortfalls, fmt.Sprintf("%s: %v", line.ProductID, err))
			failed[line.ProductID] = true
			s.countConsistency()
			s.log.Error("stock decrement failed after validation, manual reconciliation required",
				slog.String("product_id", line.ProductID),
				slog.Int("quantity", int(line.Quantity)),
				slog.Any("err", err),
			)
		}
	}
	return shortfalls, failed
}

// compensateDecrements returns stock taken by a losing duplicate delivery.
// Lines in the failed set were never decremented and get nothing back.
func (s *Service) compensateDecrements(ctx context.Context, cart []payment.CartLine, failed map[string]bool) {
	for _, line := range cart {
		if failed[line.ProductID] {
			continue
		}
		if err := s.stock.Increment(ctx, line.ProductID, line.Quantity); err != nil {
			s.countConsistency()
			s.log.Error("failed to return stock after duplicate delivery, manual reconciliation required",
				slog.String("product_id", line.ProductID),
				slog.Any("err", err),
			)
		}
	}
}

type CancelResult struct {
	Order    orderdomain.Order
	Refunded bool
}

// Cancel runs the reverse path. The refund goes first because it is the
// irreversible external side effect: stock restoration and the status flip
// only happen once the financial reversal is confirmed.
func (s *Service) Cancel(ctx context.Context, who identity.Identity, orderID string) (CancelResult, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return CancelResult{}, err
	}
	if o.BuyerID != who.ID {
		return CancelResult{}, ErrNotOwner
	}
	if o.Status == orderdomain.StatusCancelled {
		return CancelResult{}, ErrAlreadyCancelled
	}
	if !o.Status.Cancellable() {
		return CancelResult{}, ErrNotCancellable
	}
	now := time.Now().UTC()
	if now.Sub(o.CreatedAt) > s.cancelWindow {
		return CancelResult{}, ErrWindowExpired
	}

	// Pending orders were never charged and never took stock; both reverse
	// steps apply only once the order reached Paid.
	refunded := false
	if o.Status == orderdomain.StatusPaid {
		if err := s.gateway.Refund(ctx, o.PaymentRef, "requested_by_customer"); err != nil {
			s.countRefund("failed")
			s.log.Warn("refund failed, cancellation aborted",
				slog.String("order_id", o.ID),
				slog.Any("err", err),
			)
			return CancelResult{}, err
		}
		s.countRefund("issued")
		refunded = true
	}

	if refunded {
		for _, item := range o.Items {
			// A line that never took stock at capture has nothing to return.
			if item.Unfulfilled {
				continue
			}
			if err := s.stock.Increment(ctx, item.ProductID, item.Quantity); err != nil {
				// Money is already refunded; the cancellation must proceed,
				// but inventory now disagrees with reality.
				s.countConsistency()
				s.log.Error("stock restore failed after refund, manual reconciliation required",
					slog.String("order_id", o.ID),
					slog.String("product_id", item.ProductID),
					slog.Any("err", err),
				)
			}
		}
	}

	updated, err := s.orders.TransitionStatus(ctx, o.ID, []orderdomain.Status{o.Status}, orderdomain.StatusCancelled, now)
	if err != nil {
		if errors.Is(err, orderapp.ErrStatusConflict) && refunded {
			// An admin moved the order concurrently after we refunded. Both
			// external facts are true now; a human has to reconcile them.
			s.countConsistency()
			s.log.Error("order transitioned concurrently after refund, manual reconciliation required",
				slog.String("order_id", o.ID),
			)
		}
		return CancelResult{}, err
	}

	s.publish(ctx, events.TypeOrderCancelled, updated.ID, map[string]any{
		"refunded": refunded,
	})
	s.notify(ctx, notification.KindOrderCancelled, updated.BuyerID, notification.Payload{
		OrderID:  updated.ID,
		Amount:   updated.TotalAmount,
		Currency: updated.Currency,
		Refunded: refunded,
	})

	return CancelResult{Order: updated, Refunded: refunded}, nil
}

// UpdateStatus is the privileged transition used by back-office tooling. No
// stock or payment side effects: those happened at Paid, and an admin
// cancellation is an override that deliberately skips the refund path.
func (s *Service) UpdateStatus(ctx context.Context, who identity.Identity, orderID string, target orderdomain.Status) (orderdomain.Order, error) {
	if !who.IsAdmin() {
		return orderdomain.Order{}, errs.New(errs.KindForbidden, "ADMIN_ONLY", "admin role required")
	}
	switch target {
	case orderdomain.StatusShipped, orderdomain.StatusDelivered, orderdomain.StatusCancelled:
	default:
		return orderdomain.Order{}, ErrBadTargetStatus
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return orderdomain.Order{}, err
	}
	if !o.Status.CanTransition(target) {
		return orderdomain.Order{}, ErrIllegalTransition
	}

	updated, err := s.orders.TransitionStatus(ctx, o.ID, []orderdomain.Status{o.Status}, target, time.Now().UTC())
	if err != nil {
		return orderdomain.Order{}, err
	}

	var kind notification.Kind
	var evType string
	switch target {
	case orderdomain.StatusShipped:
		kind, evType = notification.KindOrderShipped, events.TypeOrderShipped
	case orderdomain.StatusDelivered:
		kind, evType = notification.KindOrderDelivered, events.TypeOrderDelivered
	case orderdomain.StatusCancelled:
		kind, evType = notification.KindOrderCancelled, events.TypeOrderCancelled
	}

	s.publish(ctx, evType, updated.ID, nil)
	s.notify(ctx, kind, updated.BuyerID, notification.Payload{
		OrderID:  updated.ID,
		Amount:   updated.TotalAmount,
		Currency: updated.Currency,
	})
	return updated, nil
}

// notify resolves the recipient from the buyer id and dispatches detached
// from the transition outcome: failures are logged and counted only.
func (s *Service) notify(ctx context.Context, kind notification.Kind, buyerID string, p notification.Payload) {
	if buyerID == "" {
		return
	}
	email, err := s.users.Email(ctx, buyerID)
	if err != nil {
		s.countNotifyFailure()
		s.log.Warn("cannot resolve notification recipient",
			slog.String("buyer_id", buyerID),
			slog.Any("err", err),
		)
		return
	}
	if err := s.notifier.Notify(ctx, kind, email, p); err != nil {
		s.countNotifyFailure()
		s.log.Warn("notification delivery failed",
			slog.String("kind", string(kind)),
			slog.String("buyer_id", buyerID),
			slog.Any("err", err),
		)
	}
}

func (s *Service) publish(ctx context.Context, evType, orderID string, payload map[string]any) {
	ev := events.Event{
		EventID:   uuid.NewString(),
		OrderID:   orderID,
		Type:      evType,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("event publish failed",
			slog.String("type", evType),
			slog.String("order_id", orderID),
			slog.Any("err", err),
		)
	}
}

func (s *Service) countWebhook(eventType, outcome string) {
	if s.metrics != nil {
		s.metrics.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
	}
}

func (s *Service) countRefund(outcome string) {
	if s.metrics != nil {
		s.metrics.Refunds.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countNotifyFailure() {
	if s.metrics != nil {
		s.metrics.NotifyFailures.Inc()
	}
}

func (s *Service) countConsistency() {
	if s.metrics != nil {
		s.metrics.ConsistencyViolations.Inc()
	}
}

func toMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
