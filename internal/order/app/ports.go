package app

import (
	"context"
	"time"

	"github.com/dwikikusuma/shop-fulfillment/internal/order/domain"
)

type OrderRepo interface {
	// Create persists a new order. A payment reference collision reports
	// ErrDuplicatePaymentRef; the unique constraint is the idempotency guard
	// against duplicate webhook deliveries.
	Create(ctx context.Context, o domain.Order) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	GetByPaymentRef(ctx context.Context, ref string) (domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListNeedingReview(ctx context.Context) ([]domain.Order, error)

	// TransitionStatus commits the move only if the row's status is still
	// one of from at write time (conditional update), closing the race
	// between precondition check and commit. Reports ErrStatusConflict when
	// the condition no longer holds.
	TransitionStatus(ctx context.Context, id string, from []domain.Status, to domain.Status, at time.Time) (domain.Order, error)
}
