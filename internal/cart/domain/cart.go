package domain

import "time"

// Status tracks a cart through its lifecycle. A user has at most one Active
// cart; checkout retires it to Ordered rather than deleting it.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusOrdered Status = "ORDERED"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusOrdered
}

type CartItem struct {
	ProductID string
	Quantity  int32
}

type Cart struct {
	ID        string
	UserID    string
	Status    Status
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Cart) Empty() bool {
	return len(c.Items) == 0
}
