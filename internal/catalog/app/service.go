package app

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shop-fulfillment/internal/catalog/domain"
	"github.com/dwikikusuma/shop-fulfillment/pkg/errs"
)

var (
	ErrInvalidInput = errs.New(errs.KindValidation, "CATALOG_INVALID_INPUT", "invalid input")
	ErrNotFound     = errs.New(errs.KindNotFound, "PRODUCT_NOT_FOUND", "product not found")

	// ErrInsufficientStock means the conditional decrement did not apply
	// because the remaining quantity was too small.
	ErrInsufficientStock = errs.New(errs.KindConflict, "INSUFFICIENT_STOCK", "not enough stock")
)

type Service struct {
	repo ProductRepo
}

func NewService(repo ProductRepo) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateProduct(ctx context.Context, name, desc, currency string, price decimal.Decimal, stock int32, sellerID string) (domain.Product, error) {
	name = strings.TrimSpace(name)
	currency = strings.TrimSpace(currency)

	if name == "" || currency == "" || !price.IsPositive() || stock < 0 {
		return domain.Product{}, ErrInvalidInput
	}

	p := domain.Product{
		Name:        name,
		Description: desc,
		Price:       price,
		Currency:    currency,
		Stock:       stock,
		SellerID:    sellerID,
	}

	return s.repo.Create(ctx, p)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, ErrInvalidInput
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, query string, limit int, cursor string) ([]domain.Product, string, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, query, limit, cursor)
}

// ReserveCheck is an advisory read: it tells the caller whether stock looked
// sufficient at this instant. The authoritative guard stays in Decrement.
func (s *Service) ReserveCheck(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return ErrInvalidInput
	}
	p, err := s.repo.Get(ctx, productID)
	if err != nil {
		return err
	}
	if p.Stock < qty {
		return ErrInsufficientStock
	}
	return nil
}

func (s *Service) Decrement(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return ErrInvalidInput
	}
	return s.repo.DecrementStock(ctx, productID, qty)
}

func (s *Service) Increment(ctx context.Context, productID string, qty int32) error {
	if qty <= 0 {
		return ErrInvalidInput
	}
	return s.repo.IncrementStock(ctx, productID, qty)
}
