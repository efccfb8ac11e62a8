package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Currency    string
	Stock       int32
	SellerID    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
