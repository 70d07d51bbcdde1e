package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
)

// OrderRecorder observes order lifecycle events, i.e. for metrics.
type OrderRecorder interface {
	OrderPlaced(order domain.Order)
	OrderStatusChanged(from, to domain.OrderStatus)
}

type nopRecorder struct{}

func (nopRecorder) OrderPlaced(domain.Order) {}
func (nopRecorder) OrderStatusChanged(_, _ domain.OrderStatus) {}

type OrderService struct {
	orders   port.OrderRepository
	carts    port.CartRepository
	cache    port.CartCache
	products productLoader
	pricing  domain.PricingPolicy
	recorder OrderRecorder
	now      func() time.Time
	log      *slog.Logger
}

type OrderOption func(*OrderService)

func WithClock(now func() time.Time) OrderOption {
	return func(s *OrderService) { s.now = now }
}

func WithMaxConcurrentLookups(n int) OrderOption {
	return func(s *OrderService) {
		if n > 0 {
			s.products.maxConcurrent = n
		}
	}
}

func WithRecorder(r OrderRecorder) OrderOption {
	return func(s *OrderService) { s.recorder = r }
}

func NewOrderService(
	orders port.OrderRepository,
	carts port.CartRepository,
	catalog port.Catalog,
	cache port.CartCache,
	pricing domain.PricingPolicy,
	log *slog.Logger,
	opts ...OrderOption,
) (*OrderService, error) {
	if err := pricing.Validate(); err != nil {
		return nil, fmt.Errorf("pricing.Validate: %w", err)
	}

	s := &OrderService{
		orders: orders,
		carts:  carts,
		cache:  cache,
		products: productLoader{
			catalog:       catalog,
			maxConcurrent: defaultMaxConcurrentLookups,
			log:           log,
		},
		pricing:  pricing,
		recorder: nopRecorder{},
		now:      time.Now,
		log:      log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// PlaceOrder turns the user's cart into an order priced from current catalog prices and clears the cart.
// With an idempotency key, a repeated request returns the order created by the first one.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, req domain.PlaceOrderRequest) (domain.Order, error) {
	var o domain.Order

	if userID == "" {
		return o, domain.ErrUnauthenticated
	}

	req, err := req.Normalize()
	if err != nil {
		return o, fmt.Errorf("req.Normalize: %w", err)
	}

	if req.IdempotencyKey != "" {
		existing, err := s.orderByIdempotencyKey(ctx, userID, req.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return o, err
		}
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return o, fmt.Errorf("carts.GetCart: %w", err)
	}
	if cart.IsEmpty() {
		return o, fmt.Errorf("user[%s]: %w", userID, domain.ErrEmptyCart)
	}

	productIDs := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := s.products.load(ctx, productIDs)
	if err != nil {
		return o, fmt.Errorf("products.load: %w", err)
	}

	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		product := products[item.ProductID]
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
	}

	totals, err := s.pricing.Price(items)
	if err != nil {
		return o, fmt.Errorf("pricing.Price: %w", err)
	}

	paymentStatus := domain.PaymentStatusPending
	if req.PaymentStatus != nil {
		paymentStatus = *req.PaymentStatus
	}

	now := s.clock()
	order := domain.Order{
		ID:                uuid.New(),
		OwnerID:           userID,
		Items:             items,
		Subtotal:          totals.Subtotal,
		ShippingCost:      totals.ShippingCost,
		Tax:               totals.Tax,
		TotalAmount:       totals.Total,
		ShippingAddress:   req.ShippingAddress,
		BillingAddress:    req.BillingAddress,
		PaymentMethod:     req.PaymentMethod,
		PaymentStatus:     paymentStatus,
		Status:            domain.OrderStatusProcessing,
		EstimatedDelivery: now.Add(domain.PlacedDeliveryWindow),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	event := domain.NewOrderEvent(domain.EventOrderPlaced, "", order, now)

	placed, err := s.orders.PlaceOrder(ctx, order, cart.Version, req.IdempotencyKey, event)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateOrder) {
			// a concurrent request with the same key won
			return s.orderByIdempotencyKey(ctx, userID, req.IdempotencyKey)
		}
		return o, fmt.Errorf("orders.PlaceOrder: %w", err)
	}

	if _, err := refreshCachedCart(ctx, s.carts, s.cache, s.log, userID); err != nil {
		s.log.WarnContext(ctx, "cart refresh after checkout failed", "user_id", userID, "error", err)
	}

	s.recorder.OrderPlaced(placed)
	s.log.InfoContext(ctx, "order placed",
		"order_id", placed.ID,
		"user_id", userID,
		"total", placed.TotalAmount.String(),
		"items", len(placed.Items),
	)

	attachProducts(&placed, lookupProducts(products))

	return placed, nil
}

func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (domain.Order, error) {
	var o domain.Order

	if err := actor.Validate(); err != nil {
		return o, err
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return o, fmt.Errorf("orders.GetOrder: %w", err)
	}

	if !actor.CanAccess(order.OwnerID) {
		return o, fmt.Errorf("order[%s]: %w", orderID, domain.ErrForbidden)
	}

	s.expand(ctx, &order)

	return order, nil
}

// ListMyOrders returns the user's orders, newest first.
func (s *OrderService) ListMyOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	orders, err := s.orders.ListOrdersByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("orders.ListOrdersByOwner: %w", err)
	}

	s.expand(ctx, ordersPtrs(orders)...)

	return orders, nil
}

func (s *OrderService) ListAllOrders(ctx context.Context, actor domain.Actor, filter domain.OrderFilter, page domain.Page) (domain.OrderPage, error) {
	if err := actor.Validate(); err != nil {
		return domain.OrderPage{}, err
	}
	if !actor.IsAdmin() {
		return domain.OrderPage{}, fmt.Errorf("list all orders: %w", domain.ErrForbidden)
	}

	result, err := s.orders.SearchOrders(ctx, filter, page)
	if err != nil {
		return domain.OrderPage{}, fmt.Errorf("orders.SearchOrders: %w", err)
	}

	s.expand(ctx, ordersPtrs(result.Orders)...)

	return result, nil
}

// UpdateOrderStatus applies an admin update. Status changes follow the order lifecycle.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor domain.Actor, orderID uuid.UUID, update domain.StatusUpdate) (domain.Order, error) {
	var o domain.Order

	if err := actor.Validate(); err != nil {
		return o, err
	}
	if !actor.IsAdmin() {
		return o, fmt.Errorf("update order status: %w", domain.ErrForbidden)
	}
	if err := update.Validate(); err != nil {
		return o, fmt.Errorf("update.Validate: %w", err)
	}

	current, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return o, fmt.Errorf("orders.GetOrder: %w", err)
	}

	now := s.clock()
	next, err := update.Apply(current, now)
	if err != nil {
		return o, fmt.Errorf("update.Apply: %w", err)
	}

	eventType := domain.EventOrderUpdated
	if next.Status != current.Status {
		eventType = domain.EventOrderStatusChanged
		if next.Status == domain.OrderStatusCancelled {
			eventType = domain.EventOrderCancelled
		}
	}

	return s.persist(ctx, current, next, eventType, now)
}

// CancelOrder cancels an order that has not shipped yet. Owners and admins may cancel.
func (s *OrderService) CancelOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (domain.Order, error) {
	var o domain.Order

	if err := actor.Validate(); err != nil {
		return o, err
	}

	current, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return o, fmt.Errorf("orders.GetOrder: %w", err)
	}

	if !actor.CanAccess(current.OwnerID) {
		return o, fmt.Errorf("order[%s]: %w", orderID, domain.ErrForbidden)
	}

	now := s.clock()
	next, err := current.Cancel(now)
	if err != nil {
		return o, fmt.Errorf("current.Cancel: %w", err)
	}

	return s.persist(ctx, current, next, domain.EventOrderCancelled, now)
}

func (s *OrderService) persist(ctx context.Context, current, next domain.Order, eventType string, now time.Time) (domain.Order, error) {
	event := domain.NewOrderEvent(eventType, current.Status, next, now)

	updated, err := s.orders.UpdateOrder(ctx, next, current.Status, event)
	if err != nil {
		return domain.Order{}, fmt.Errorf("orders.UpdateOrder: %w", err)
	}

	if updated.Status != current.Status {
		s.recorder.OrderStatusChanged(current.Status, updated.Status)
	}

	s.log.InfoContext(ctx, "order updated",
		"order_id", updated.ID,
		"event", eventType,
		"from", current.Status,
		"to", updated.Status,
		"payment_status", updated.PaymentStatus,
	)

	s.expand(ctx, &updated)

	return updated, nil
}

func (s *OrderService) orderByIdempotencyKey(ctx context.Context, userID, key string) (domain.Order, error) {
	var o domain.Order

	orderID, err := s.orders.GetOrderIDByIdempotencyKey(ctx, userID, key)
	if err != nil {
		return o, fmt.Errorf("orders.GetOrderIDByIdempotencyKey: %w", err)
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return o, fmt.Errorf("orders.GetOrder: %w", err)
	}

	s.expand(ctx, &order)

	return order, nil
}

// expand attaches current product data to order items for display.
func (s *OrderService) expand(ctx context.Context, orders ...*domain.Order) {
	var ids []string
	for _, order := range orders {
		for _, item := range order.Items {
			ids = append(ids, item.ProductID)
		}
	}
	if len(ids) == 0 {
		return
	}

	products := s.products.expand(ctx, ids)
	for _, order := range orders {
		attachProducts(order, products)
	}
}

func (s *OrderService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func attachProducts(order *domain.Order, products map[string]*domain.Product) {
	for i := range order.Items {
		order.Items[i].Product = products[order.Items[i].ProductID]
	}
}

func lookupProducts(products map[string]domain.Product) map[string]*domain.Product {
	result := make(map[string]*domain.Product, len(products))
	for id, p := range products {
		result[id] = &p
	}
	return result
}

func ordersPtrs(orders []domain.Order) []*domain.Order {
	result := make([]*domain.Order, len(orders))
	for i := range orders {
		result[i] = &orders[i]
	}
	return result
}
