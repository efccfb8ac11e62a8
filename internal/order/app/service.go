package app

import (
	"context"

	"github.com/dwikikusuma/shop-fulfillment/internal/identity"
	"github.com/dwikikusuma/shop-fulfillment/internal/order/domain"
	"github.com/dwikikusuma/shop-fulfillment/pkg/errs"
)

var (
	ErrNotFound            = errs.New(errs.KindNotFound, "ORDER_NOT_FOUND", "order not found")
	ErrNotOwner            = errs.New(errs.KindForbidden, "ORDER_NOT_OWNER", "order belongs to another buyer")
	ErrDuplicatePaymentRef = errs.New(errs.KindConflict, "DUPLICATE_PAYMENT_REF", "payment reference already recorded")
	ErrStatusConflict      = errs.New(errs.KindConflict, "ORDER_STATUS_CONFLICT", "order status changed concurrently")
)

// Service answers order read queries with ownership enforcement. All status
// mutation goes through the fulfillment orchestrator, never through here.
type Service struct {
	repo OrderRepo
}

func NewService(repo OrderRepo) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, who identity.Identity, orderID string) (domain.Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.BuyerID != who.ID && !who.IsAdmin() {
		return domain.Order{}, ErrNotOwner
	}
	return o, nil
}

func (s *Service) ListMine(ctx context.Context, who identity.Identity) ([]domain.Order, error) {
	return s.repo.ListByBuyer(ctx, who.ID)
}

func (s *Service) ListNeedingReview(ctx context.Context, who identity.Identity) ([]domain.Order, error) {
	if !who.IsAdmin() {
		return nil, errs.New(errs.KindForbidden, "ADMIN_ONLY", "admin role required")
	}
	return s.repo.ListNeedingReview(ctx)
}
