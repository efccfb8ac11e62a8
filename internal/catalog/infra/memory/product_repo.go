// Package memory holds an in-memory ProductRepo used by tests and local
// development. Stock mutation is guarded by a single mutex, giving the same
// linearized conditional-update semantics as the SQL implementation.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dwikikusuma/shop-fulfillment/internal/catalog/app"
	"github.com/dwikikusuma/shop-fulfillment/internal/catalog/domain"
)

type ProductRepo struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func NewProductRepo() *ProductRepo {
	return &ProductRepo{products: make(map[string]domain.Product)}
}

var _ app.ProductRepo = (*ProductRepo)(nil)

func (r *ProductRepo) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.products[p.ID] = p
	return p, nil
}

func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return domain.Product{}, app.ErrNotFound
	}
	return p, nil
}

func (r *ProductRepo) List(ctx context.Context, query string, limit int, cursor string) ([]domain.Product, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.products))
	for id := range r.products {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []domain.Product
	for _, id := range ids {
		if cursor != "" && id <= cursor {
			continue
		}
		p := r.products[id]
		if query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}

	next := ""
	if len(out) == limit && limit > 0 {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (r *ProductRepo) DecrementStock(ctx context.Context, productID string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return app.ErrNotFound
	}
	if p.Stock < qty {
		return app.ErrInsufficientStock
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now().UTC()
	r.products[productID] = p
	return nil
}

func (r *ProductRepo) IncrementStock(ctx context.Context, productID string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return app.ErrNotFound
	}
	p.Stock += qty
	p.UpdatedAt = time.Now().UTC()
	r.products[productID] = p
	return nil
}

// Stock reports the current quantity, for test assertions.
func (r *ProductRepo) Stock(productID string) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[productID].Stock
}
