package service_test

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type memCartRepo struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
	gets  int
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{carts: make(map[string]domain.Cart)}
}

func (r *memCartRepo) GetCart(_ context.Context, ownerID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gets++
	return r.snapshot(ownerID), nil
}

func (r *memCartRepo) snapshot(ownerID string) domain.Cart {
	cart, ok := r.carts[ownerID]
	if !ok {
		return domain.EmptyCart(ownerID)
	}
	cart.Items = slices.Clone(cart.Items)
	return cart
}

func (r *memCartRepo) SetItem(_ context.Context, ownerID, productID string, quantity int) error {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cart := r.snapshot(ownerID)
	cart.Version++

	idx := slices.IndexFunc(cart.Items, func(i domain.CartItem) bool { return i.ProductID == productID })
	if idx >= 0 {
		cart.Items[idx].Quantity = quantity
	} else {
		cart.Items = append(cart.Items, domain.CartItem{ProductID: productID, Quantity: quantity})
	}

	r.carts[ownerID] = cart
	return nil
}

func (r *memCartRepo) DeleteItem(_ context.Context, ownerID, productID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart := r.snapshot(ownerID)
	idx := slices.IndexFunc(cart.Items, func(i domain.CartItem) bool { return i.ProductID == productID })
	if idx < 0 {
		return false, nil
	}

	cart.Items = slices.Delete(cart.Items, idx, idx+1)
	cart.Version++
	r.carts[ownerID] = cart
	return true, nil
}

func (r *memCartRepo) ClearCart(_ context.Context, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clearLocked(ownerID)
	return nil
}

func (r *memCartRepo) clearLocked(ownerID string) {
	cart := r.snapshot(ownerID)
	if cart.IsEmpty() {
		return
	}
	cart.Items = []domain.CartItem{}
	cart.Version++
	r.carts[ownerID] = cart
}

// memOrderRepo shares the cart repository lock so that PlaceOrder is atomic with cart mutations.
type memOrderRepo struct {
	carts *memCartRepo

	orders      map[uuid.UUID]domain.Order
	idempotency map[string]uuid.UUID
	events      []domain.OrderEvent

	// failPlace makes the next PlaceOrder fail after all checks passed.
	failPlace error
}

func newMemOrderRepo(carts *memCartRepo) *memOrderRepo {
	return &memOrderRepo{
		carts:       carts,
		orders:      make(map[uuid.UUID]domain.Order),
		idempotency: make(map[string]uuid.UUID),
	}
}

var _ port.OrderRepository = (*memOrderRepo)(nil)

func (r *memOrderRepo) GetOrder(_ context.Context, orderID uuid.UUID) (domain.Order, error) {
	r.carts.mu.Lock()
	defer r.carts.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *memOrderRepo) ListOrdersByOwner(_ context.Context, ownerID string) ([]domain.Order, error) {
	r.carts.mu.Lock()
	defer r.carts.mu.Unlock()

	var result []domain.Order
	for _, o := range r.orders {
		if o.OwnerID == ownerID {
			result = append(result, o.Clone())
		}
	}
	slices.SortFunc(result, func(a, b domain.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return result, nil
}

func (r *memOrderRepo) SearchOrders(_ context.Context, filter domain.OrderFilter, page domain.Page) (domain.OrderPage, error) {
	r.carts.mu.Lock()
	defer r.carts.mu.Unlock()

	var matched []domain.Order
	for _, o := range r.orders {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, o.Status) {
			continue
		}
		matched = append(matched, o.Clone())
	}
	slices.SortFunc(matched, func(a, b domain.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })

	start := min(page.Offset(), len(matched))
	end := min(start+page.Limit, len(matched))

	return domain.OrderPage{Orders: matched[start:end], Total: len(matched), Page: page}, nil
}

func (r *memOrderRepo) PlaceOrder(_ context.Context, order domain.Order, cartVersion int64, key string, event domain.OrderEvent) (domain.Order, error) {
	if err := order.Validate(); err != nil {
		return domain.Order{}, err
	}

	r.carts.mu.Lock()
	defer r.carts.mu.Unlock()

	if cart := r.carts.snapshot(order.OwnerID); cart.Version != cartVersion {
		return domain.Order{}, domain.ErrStorageConflict
	}

	if key != "" {
		if _, ok := r.idempotency[order.OwnerID+"/"+key]; ok {
			return domain.Order{}, domain.ErrDuplicateOrder
		}
	}

	if r.failPlace != nil {
		err := r.failPlace
		r.failPlace = nil
		return domain.Order{}, err
	}

	order = order.Clone()
	order.Version = 1

	r.orders[order.ID] = order
	if key != "" {
		r.idempotency[order.OwnerID+"/"+key] = order.ID
	}
	r.events = append(r.events, event)
	r.carts.clearLocked(order.OwnerID)

	return order.Clone(), nil
}

func (r *memOrderRepo) GetOrderIDByIdempotencyKey(_ context.Context, ownerID, key string) (uuid.UUID, error) {
	r.carts.mu.Lock()
	defer r.carts.mu.Unlock()

	id, ok := r.idempotency[ownerID+"/"+key]
	if !ok {
		return uuid.Nil, domain.ErrNotFound
	}
	return id, nil
}

func (r *memOrderRepo) UpdateOrder(_ context.Context, order domain.Order, expected domain.OrderStatus, event domain.OrderEvent) (domain.Order, error) {
	r.carts.mu.Lock()
	defer r.carts.mu.Unlock()

	current, ok := r.orders[order.ID]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if current.Status != expected || current.Version != order.Version {
		return domain.Order{}, domain.ErrStorageConflict
	}

	order = order.Clone()
	order.Version++

	r.orders[order.ID] = order
	r.events = append(r.events, event)
	return order.Clone(), nil
}

func (r *memOrderRepo) setStatus(orderID uuid.UUID, status domain.OrderStatus) {
	r.carts.mu.Lock()
	defer r.carts.mu.Unlock()

	o := r.orders[orderID]
	o.Status = status
	r.orders[orderID] = o
}

func (r *memOrderRepo) count() int {
	r.carts.mu.Lock()
	defer r.carts.mu.Unlock()

	return len(r.orders)
}

type memCatalog struct {
	mu       sync.Mutex
	products map[string]domain.Product
	err      error
}

func newMemCatalog(products ...domain.Product) *memCatalog {
	c := &memCatalog{products: make(map[string]domain.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *memCatalog) GetProduct(_ context.Context, productID string) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return domain.Product{}, c.err
	}
	p, ok := c.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (c *memCatalog) setPrice(productID string, price string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.products[productID]
	p.Price = domain.NewMoney(decimal.RequireFromString(price), currency.INR)
	c.products[productID] = p
}

type memCache struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
	hits  int
}

func newMemCache() *memCache {
	return &memCache{carts: make(map[string]domain.Cart)}
}

func (c *memCache) Get(_ context.Context, ownerID string) (domain.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cart, ok := c.carts[ownerID]
	if !ok {
		return domain.Cart{}, port.ErrCacheMiss
	}
	c.hits++
	cart.Items = slices.Clone(cart.Items)
	return cart, nil
}

func (c *memCache) Set(_ context.Context, cart domain.Cart) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.carts[cart.OwnerID]; ok && current.Version > cart.Version {
		return nil
	}
	cart.Items = slices.Clone(cart.Items)
	c.carts[cart.OwnerID] = cart
	return nil
}

func (c *memCache) Delete(_ context.Context, ownerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.carts, ownerID)
	return nil
}

func product(id, price string) domain.Product {
	return domain.Product{
		ID:       id,
		Name:     "Product " + id,
		Category: "general",
		Price:    domain.NewMoney(decimal.RequireFromString(price), currency.INR),
		Stock:    10,
	}
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sortedItems(items []domain.CartItem) []domain.CartItem {
	items = slices.Clone(items)
	slices.SortFunc(items, func(a, b domain.CartItem) int { return cmp.Compare(a.ProductID, b.ProductID) })
	return items
}

type countingRecorder struct {
	mu          sync.Mutex
	placed      int
	transitions []string
}

func (r *countingRecorder) OrderPlaced(domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placed++
}

func (r *countingRecorder) OrderStatusChanged(from, to domain.OrderStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, string(from)+"->"+string(to))
}
