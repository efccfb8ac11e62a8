package app

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shop-fulfillment/internal/events"
	"github.com/dwikikusuma/shop-fulfillment/internal/notification"
	ordermem "github.com/dwikikusuma/shop-fulfillment/internal/order/infra/memory"
	"github.com/dwikikusuma/shop-fulfillment/internal/payment"
	"github.com/dwikikusuma/shop-fulfillment/internal/payment/paytest"
	"github.com/dwikikusuma/shop-fulfillment/pkg/errs"
)

type fakeCart struct {
	items map[string][]CartItem
}

func (f *fakeCart) GetCart(ctx context.Context, userID string) ([]CartItem, error) {
	return f.items[userID], nil
}

// fakeStore backs both the catalog read side and the stock ledger, with the
// same conditional-decrement semantics as the SQL repo.
type fakeStore struct {
	mu       sync.Mutex
	products map[string]Product

	failIncrement map[string]error
}

func newFakeStore(products ...Product) *fakeStore {
	s := &fakeStore{
		products:      make(map[string]Product),
		failIncrement: make(map[string]error),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (f *fakeStore) GetProduct(ctx context.Context, productID string) (Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return Product{}, errs.Newf(errs.KindNotFound, "PRODUCT_NOT_FOUND", "no product %s", productID)
	}
	return p, nil
}

func (f *fakeStore) ReserveCheck(ctx context.Context, productID string, qty int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return errs.Newf(errs.KindNotFound, "PRODUCT_NOT_FOUND", "no product %s", productID)
	}
	if p.Stock < qty {
		return errs.Newf(errs.KindConflict, "INSUFFICIENT_STOCK", "only %d left", p.Stock)
	}
	return nil
}

func (f *fakeStore) Decrement(ctx context.Context, productID string, qty int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return errs.Newf(errs.KindNotFound, "PRODUCT_NOT_FOUND", "no product %s", productID)
	}
	if p.Stock < qty {
		return errs.Newf(errs.KindConflict, "INSUFFICIENT_STOCK", "only %d left", p.Stock)
	}
	p.Stock -= qty
	f.products[productID] = p
	return nil
}

func (f *fakeStore) Increment(ctx context.Context, productID string, qty int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failIncrement[productID]; err != nil {
		return err
	}
	p, ok := f.products[productID]
	if !ok {
		return errs.Newf(errs.KindNotFound, "PRODUCT_NOT_FOUND", "no product %s", productID)
	}
	p.Stock += qty
	f.products[productID] = p
	return nil
}

func (f *fakeStore) stockOf(productID string) int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[productID].Stock
}

func (f *fakeStore) setStock(productID string, stock int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.products[productID]
	p.Stock = stock
	f.products[productID] = p
}

type fakeUsers struct {
	emails map[string]string
}

func (f *fakeUsers) Email(ctx context.Context, userID string) (string, error) {
	email, ok := f.emails[userID]
	if !ok {
		return "", errs.Newf(errs.KindNotFound, "USER_NOT_FOUND", "no user %s", userID)
	}
	return email, nil
}

type sentNote struct {
	Kind      notification.Kind
	Recipient string
	Payload   notification.Payload
}

type recordNotifier struct {
	mu   sync.Mutex
	sent []sentNote
}

func (r *recordNotifier) Notify(ctx context.Context, kind notification.Kind, recipient string, p notification.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNote{Kind: kind, Recipient: recipient, Payload: p})
	return nil
}

func (r *recordNotifier) byKind(kind notification.Kind) []sentNote {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentNote
	for _, n := range r.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type recordEvents struct {
	mu        sync.Mutex
	published []events.Event
}

func (r *recordEvents) Publish(ctx context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, ev)
	return nil
}

func (r *recordEvents) Close() error { return nil }

func (r *recordEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.published {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	svc      *Service
	cart     *fakeCart
	store    *fakeStore
	orders   *ordermem.OrderRepo
	gateway  *paytest.Fake
	notifier *recordNotifier
	events   *recordEvents
}

func newHarness(products ...Product) *harness {
	h := &harness{
		cart:     &fakeCart{items: make(map[string][]CartItem)},
		store:    newFakeStore(products...),
		orders:   ordermem.NewOrderRepo(),
		gateway:  paytest.New("whsec_test"),
		notifier: &recordNotifier{},
		events:   &recordEvents{},
	}
	h.svc = NewService(Deps{
		Cart:    h.cart,
		Catalog: h.store,
		Stock:   h.store,
		Orders:  h.orders,
		Gateway: h.gateway,
		Users: &fakeUsers{emails: map[string]string{
			"buyer-1": "buyer-1@example.com",
			"buyer-2": "buyer-2@example.com",
		}},
		Notifier: h.notifier,
		Events:   h.events,
	}, 0)
	return h
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func snapshot(lines ...payment.CartLine) payment.IntentMetadata {
	return payment.IntentMetadata{BuyerID: "buyer-1", Cart: lines}
}
