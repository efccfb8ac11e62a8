package app

import (
	"context"
	"errors"

	"github.com/dwikikusuma/shop-fulfillment/internal/cart/domain"
	"github.com/dwikikusuma/shop-fulfillment/pkg/errs"
)

var (
	ErrNotFound     = errs.New(errs.KindNotFound, "CART_NOT_FOUND", "cart not found")
	ErrInvalidInput = errs.New(errs.KindValidation, "CART_INVALID_INPUT", "invalid input")
)

type Service struct {
	repo CartRepo
}

func NewService(repo CartRepo) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	return s.repo.Get(ctx, userID)
}

// GetOrCreate returns the user's active cart, creating an empty one on first
// access.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return s.repo.Create(ctx, domain.Cart{UserID: userID})
	}
	return cart, err
}

func (s *Service) AddItem(ctx context.Context, userID string, item domain.CartItem) (domain.Cart, error) {
	if item.ProductID == "" || item.Quantity <= 0 {
		return domain.Cart{}, ErrInvalidInput
	}
	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := s.repo.AddItem(ctx, item, cart.ID); err != nil {
		return domain.Cart{}, err
	}
	return s.repo.Get(ctx, userID)
}

func (s *Service) SetItemQuantity(ctx context.Context, userID string, item domain.CartItem) (domain.Cart, error) {
	if item.ProductID == "" || item.Quantity <= 0 {
		return domain.Cart{}, ErrInvalidInput
	}
	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := s.repo.SetItemQuantity(ctx, cart.ID, item); err != nil {
		return domain.Cart{}, err
	}
	return s.repo.Get(ctx, userID)
}

func (s *Service) RemoveItem(ctx context.Context, userID string, productID string) (domain.Cart, error) {
	if productID == "" {
		return domain.Cart{}, ErrInvalidInput
	}
	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := s.repo.RemoveItem(ctx, cart.ID, productID); err != nil {
		return domain.Cart{}, err
	}
	return s.repo.Get(ctx, userID)
}

func (s *Service) ClearCart(ctx context.Context, userID string) error {
	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	return s.repo.Clear(ctx, cart.ID)
}
