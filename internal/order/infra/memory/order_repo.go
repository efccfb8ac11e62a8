// Package memory holds an in-memory OrderRepo for tests and local
// development. It enforces the same payment-reference uniqueness and
// conditional status transitions as the SQL implementation.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dwikikusuma/shop-fulfillment/internal/order/app"
	"github.com/dwikikusuma/shop-fulfillment/internal/order/domain"
)

type OrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	byRef  map[string]string
}

func NewOrderRepo() *OrderRepo {
	return &OrderRepo{
		orders: make(map[string]domain.Order),
		byRef:  make(map[string]string),
	}
}

var _ app.OrderRepo = (*OrderRepo)(nil)

func (r *OrderRepo) Create(ctx context.Context, o domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byRef[o.PaymentRef]; exists {
		return domain.Order{}, app.ErrDuplicatePaymentRef
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	r.orders[o.ID] = o
	r.byRef[o.PaymentRef] = o.ID
	return o, nil
}

func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, app.ErrNotFound
	}
	return o, nil
}

func (r *OrderRepo) GetByPaymentRef(ctx context.Context, ref string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byRef[ref]
	if !ok {
		return domain.Order{}, app.ErrNotFound
	}
	return r.orders[id], nil
}

func (r *OrderRepo) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Order
	for _, o := range r.orders {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *OrderRepo) ListNeedingReview(ctx context.Context) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Order
	for _, o := range r.orders {
		if o.NeedsReview {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *OrderRepo) TransitionStatus(ctx context.Context, id string, from []domain.Status, to domain.Status, at time.Time) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, app.ErrNotFound
	}

	eligible := false
	for _, s := range from {
		if o.Status == s {
			eligible = true
			break
		}
	}
	if !eligible {
		return domain.Order{}, app.ErrStatusConflict
	}

	o.Status = to
	o.UpdatedAt = at
	switch to {
	case domain.StatusShipped:
		o.ShippedAt = &at
	case domain.StatusDelivered:
		o.DeliveredAt = &at
	case domain.StatusCancelled:
		o.CancelledAt = &at
	}
	r.orders[id] = o
	return o, nil
}

// Seed places an order directly, bypassing uniqueness bookkeeping guards
// except the payment reference index. For tests.
func (r *OrderRepo) Seed(o domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
	if o.PaymentRef != "" {
		r.byRef[o.PaymentRef] = o.ID
	}
}
