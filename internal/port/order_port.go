package port

import (
	"context"
	"github.com/google/uuid"
	"github.com/nikolayk812/storefront/internal/domain"
)

type OrderRepository interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error)
	ListOrdersByOwner(ctx context.Context, ownerID string) ([]domain.Order, error)
	SearchOrders(ctx context.Context, filter domain.OrderFilter, page domain.Page) (domain.OrderPage, error)

	// PlaceOrder atomically checks the cart version, inserts the order, registers the idempotency key,
	// enqueues the event and clears the cart.
	PlaceOrder(ctx context.Context, order domain.Order, cartVersion int64, idempotencyKey string, event domain.OrderEvent) (domain.Order, error)
	GetOrderIDByIdempotencyKey(ctx context.Context, ownerID, key string) (uuid.UUID, error)

	// UpdateOrder persists the mutable fields of the order only if its status still equals expected.
	UpdateOrder(ctx context.Context, order domain.Order, expected domain.OrderStatus, event domain.OrderEvent) (domain.Order, error)
}

type OutboxRepository interface {
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error)
	MarkSent(ctx context.Context, ids []int64) error
}
