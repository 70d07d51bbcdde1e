package port

import (
	"context"
	"errors"
	"github.com/nikolayk812/storefront/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

type CartRepository interface {
	// GetCart returns an empty cart with version 0 when the owner has none.
	GetCart(ctx context.Context, ownerID string) (domain.Cart, error)
	SetItem(ctx context.Context, ownerID, productID string, quantity int) error
	DeleteItem(ctx context.Context, ownerID, productID string) (bool, error)
	ClearCart(ctx context.Context, ownerID string) error
}

type CartCache interface {
	Get(ctx context.Context, ownerID string) (domain.Cart, error)
	// Set never replaces an entry holding a newer cart version.
	Set(ctx context.Context, cart domain.Cart) error
	Delete(ctx context.Context, ownerID string) error
}

type Catalog interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
}
