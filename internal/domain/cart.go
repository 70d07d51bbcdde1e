package domain

import (
	"fmt"
	"time"
)

// Cart is owned by exactly one user and holds at most one item per product.
// Version changes on every mutation and is used as the checkout compare-and-swap token.
type Cart struct {
	OwnerID string     `json:"ownerId"`
	Items   []CartItem `json:"items"`
	Version int64      `json:"version"`
}

type CartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func EmptyCart(ownerID string) Cart {
	return Cart{OwnerID: ownerID, Items: []CartItem{}}
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) Item(productID string) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return CartItem{}, false
}

func (c Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// MaxItemQuantity bounds a single cart or order line.
const MaxItemQuantity = 10_000

func ValidateQuantity(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity[%d] must be positive: %w", quantity, ErrInvalidQuantity)
	}
	if quantity > MaxItemQuantity {
		return fmt.Errorf("quantity[%d] exceeds %d: %w", quantity, MaxItemQuantity, ErrInvalidQuantity)
	}
	return nil
}

// CartView is a cart joined with current catalog data for display.
// Product is nil when the catalog no longer knows the product.
type CartView struct {
	Cart  Cart
	Lines []CartLine
}

type CartLine struct {
	Item    CartItem
	Product *Product
}
