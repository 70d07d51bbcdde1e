package repository_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/nikolayk812/storefront/internal/repository"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"go.uber.org/goleak"
	"golang.org/x/text/currency"
)

type orderRepositorySuite struct {
	suite.Suite

	pool      *pgxpool.Pool
	container testcontainers.Container

	repo   port.OrderRepository
	carts  port.CartRepository
	outbox port.OutboxRepository
}

// entry point to run the tests in the suite
func TestOrderRepositorySuite(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)

	suite.Run(t, new(orderRepositorySuite))
}

// before all tests in the suite
func (suite *orderRepositorySuite) SetupSuite() {
	ctx := suite.T().Context()

	var (
		connStr string
		err     error
	)

	suite.container, connStr, err = startPostgres(ctx)
	suite.Require().NoError(err)

	suite.pool, err = pgxpool.New(ctx, connStr)
	suite.Require().NoError(err)

	suite.repo = repository.NewOrder(suite.pool)
	suite.carts = repository.NewCart(suite.pool)
	suite.outbox = repository.NewOutbox(suite.pool)
}

// after all tests in the suite
func (suite *orderRepositorySuite) TearDownSuite() {
	ctx := suite.T().Context()

	if suite.pool != nil {
		suite.pool.Close()
	}
	if suite.container != nil {
		suite.NoError(suite.container.Terminate(ctx))
	}
}

func (suite *orderRepositorySuite) TestPlaceOrder() {
	defer suite.deleteAll()

	tests := []struct {
		name           string
		versionDelta   int64
		idempotencyKey string
		wantError      error
	}{
		{
			name: "place order: ok",
		},
		{
			name:           "place order with idempotency key: ok",
			idempotencyKey: gofakeit.UUID(),
		},
		{
			name:         "stale cart version: conflict",
			versionDelta: -1,
			wantError:    domain.ErrStorageConflict,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()

			order := randomOrder(gofakeit.UUID())
			cart := suite.fillCart(order)

			placed, err := suite.repo.PlaceOrder(ctx, order, cart.Version+tt.versionDelta, tt.idempotencyKey, placedEvent(order))
			if tt.wantError != nil {
				require.ErrorIs(t, err, tt.wantError)

				// nothing changed
				_, err = suite.repo.GetOrder(ctx, order.ID)
				require.ErrorIs(t, err, domain.ErrNotFound)

				after, err := suite.carts.GetCart(ctx, order.OwnerID)
				require.NoError(t, err)
				assertCart(t, cart, after)
				return
			}
			require.NoError(t, err)
			assertOrder(t, order, placed)

			got, err := suite.repo.GetOrder(ctx, order.ID)
			require.NoError(t, err)
			assertOrder(t, order, got)

			after, err := suite.carts.GetCart(ctx, order.OwnerID)
			require.NoError(t, err)
			assert.True(t, after.IsEmpty())
			assert.Equal(t, cart.Version+1, after.Version)

			if tt.idempotencyKey != "" {
				id, err := suite.repo.GetOrderIDByIdempotencyKey(ctx, order.OwnerID, tt.idempotencyKey)
				require.NoError(t, err)
				assert.Equal(t, order.ID, id)
			}
		})
	}
}

func (suite *orderRepositorySuite) TestPlaceOrder_DuplicateIdempotencyKey() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	ownerID := gofakeit.UUID()
	key := gofakeit.UUID()

	first := randomOrder(ownerID)
	cart := suite.fillCart(first)
	_, err := suite.repo.PlaceOrder(ctx, first, cart.Version, key, placedEvent(first))
	require.NoError(t, err)

	second := randomOrder(ownerID)
	cart = suite.fillCart(second)
	_, err = suite.repo.PlaceOrder(ctx, second, cart.Version, key, placedEvent(second))
	require.ErrorIs(t, err, domain.ErrDuplicateOrder)

	// rolled back: second order absent and cart intact
	_, err = suite.repo.GetOrder(ctx, second.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	after, err := suite.carts.GetCart(ctx, ownerID)
	require.NoError(t, err)
	assertCart(t, cart, after)
}

func (suite *orderRepositorySuite) TestPlaceOrder_InvalidOrder() {
	t := suite.T()
	ctx := t.Context()

	order := randomOrder(gofakeit.UUID())
	order.TotalAmount = order.Subtotal

	_, err := suite.repo.PlaceOrder(ctx, order, 1, "", placedEvent(order))
	require.Error(t, err)
}

func (suite *orderRepositorySuite) TestPlaceOrder_AmountOutOfRange() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	order := randomOrder(gofakeit.UUID())
	order.Items = order.Items[:1]
	order.Items[0].Quantity = domain.MaxItemQuantity
	order.Items[0].UnitPrice = domain.NewMoney(decimal.New(1, 12), currency.INR)

	totals, err := domain.DefaultPricingPolicy().Price(order.Items)
	require.NoError(t, err)
	order.Subtotal, order.ShippingCost, order.Tax, order.TotalAmount = totals.Subtotal, totals.ShippingCost, totals.Tax, totals.Total

	cart := suite.fillCart(order)

	_, err = suite.repo.PlaceOrder(ctx, order, cart.Version, "", placedEvent(order))
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = suite.repo.GetOrder(ctx, order.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	after, err := suite.carts.GetCart(ctx, order.OwnerID)
	require.NoError(t, err)
	assertCart(t, cart, after)
}

func (suite *orderRepositorySuite) TestGetOrder_NotFound() {
	_, err := suite.repo.GetOrder(suite.T().Context(), uuid.New())
	suite.ErrorIs(err, domain.ErrNotFound)

	_, err = suite.repo.GetOrderIDByIdempotencyKey(suite.T().Context(), gofakeit.UUID(), gofakeit.UUID())
	suite.ErrorIs(err, domain.ErrNotFound)
}

func (suite *orderRepositorySuite) TestListOrdersByOwner() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	ownerID := gofakeit.UUID()

	older := randomOrder(ownerID)
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := randomOrder(ownerID)
	other := randomOrder(gofakeit.UUID())

	suite.placeOrders(older, newer, other)

	orders, err := suite.repo.ListOrdersByOwner(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assertOrder(t, newer, orders[0])
	assertOrder(t, older, orders[1])

	orders, err = suite.repo.ListOrdersByOwner(ctx, gofakeit.UUID())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func (suite *orderRepositorySuite) TestUpdateOrder() {
	defer suite.deleteAll()

	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name      string
		expected  func(o domain.Order) domain.OrderStatus
		missing   bool
		wantError error
	}{
		{
			name:     "ship processing order: ok",
			expected: func(o domain.Order) domain.OrderStatus { return o.Status },
		},
		{
			name:      "status changed concurrently: conflict",
			expected:  func(o domain.Order) domain.OrderStatus { return domain.OrderStatusShipped },
			wantError: domain.ErrStorageConflict,
		},
		{
			name:      "missing order: not found",
			expected:  func(o domain.Order) domain.OrderStatus { return o.Status },
			missing:   true,
			wantError: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()

			order := randomOrder(gofakeit.UUID())
			if !tt.missing {
				suite.placeOrders(order)

				stored, err := suite.repo.GetOrder(ctx, order.ID)
				require.NoError(t, err)
				order = stored
			}

			next, err := domain.StatusUpdate{
				OrderStatus:    lo.ToPtr(domain.OrderStatusShipped),
				PaymentStatus:  lo.ToPtr(domain.PaymentStatusPaid),
				TrackingNumber: lo.ToPtr("TRK-" + gofakeit.DigitN(8)),
			}.Apply(order, now)
			require.NoError(t, err)

			event := domain.NewOrderEvent(domain.EventOrderStatusChanged, order.Status, next, now)

			updated, err := suite.repo.UpdateOrder(ctx, next, tt.expected(order), event)
			if tt.wantError != nil {
				require.ErrorIs(t, err, tt.wantError)

				if !tt.missing {
					got, err := suite.repo.GetOrder(ctx, order.ID)
					require.NoError(t, err)
					assertOrder(t, order, got)
				}
				return
			}
			require.NoError(t, err)
			assertOrder(t, next, updated)
			assert.Equal(t, order.Version+1, updated.Version)

			got, err := suite.repo.GetOrder(ctx, order.ID)
			require.NoError(t, err)
			assertOrder(t, next, got)
		})
	}
}

func (suite *orderRepositorySuite) TestUpdateOrder_StaleVersion() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()
	now := time.Now().UTC().Truncate(time.Microsecond)

	order := randomOrder(gofakeit.UUID())
	suite.placeOrders(order)

	// both admins read the order before either writes
	snapshot, err := suite.repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snapshot.Version)

	paid, err := domain.StatusUpdate{
		PaymentStatus: lo.ToPtr(domain.PaymentStatusPaid),
	}.Apply(snapshot, now)
	require.NoError(t, err)

	tracked, err := domain.StatusUpdate{
		TrackingNumber: lo.ToPtr("TRK-" + gofakeit.DigitN(8)),
	}.Apply(snapshot, now.Add(time.Second))
	require.NoError(t, err)

	updated, err := suite.repo.UpdateOrder(ctx, paid, snapshot.Status,
		domain.NewOrderEvent(domain.EventOrderUpdated, snapshot.Status, paid, now))
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	_, err = suite.repo.UpdateOrder(ctx, tracked, snapshot.Status,
		domain.NewOrderEvent(domain.EventOrderUpdated, snapshot.Status, tracked, now.Add(time.Second)))
	require.ErrorIs(t, err, domain.ErrStorageConflict)

	got, err := suite.repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assertOrder(t, paid, got)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
	assert.Nil(t, got.TrackingNumber)
}

func (suite *orderRepositorySuite) TestSearchOrders() {
	defer suite.deleteAll()

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	o1 := randomOrder(gofakeit.UUID())
	o1.CreatedAt = base
	o1.ShippingAddress.FullName = "Priya Sharma"
	o1.ShippingAddress.Email = "priya@shop.test"

	o2 := randomOrder(gofakeit.UUID())
	o2.CreatedAt = base.Add(24 * time.Hour)
	o2.Status = domain.OrderStatusShipped
	o2.PaymentStatus = domain.PaymentStatusPaid
	o2.ShippingAddress.FullName = "Rahul 100%_Kumar"

	o3 := randomOrder(gofakeit.UUID())
	o3.CreatedAt = base.Add(48 * time.Hour)
	o3.Status = domain.OrderStatusCancelled

	suite.placeOrders(o1, o2, o3)

	firstPage := domain.Page{Number: 1, Limit: 20}

	tests := []struct {
		name      string
		filter    domain.OrderFilter
		page      domain.Page
		want      []domain.Order
		wantTotal int
		wantError error
	}{
		{
			name:      "empty filter returns newest first",
			page:      firstPage,
			want:      []domain.Order{o3, o2, o1},
			wantTotal: 3,
		},
		{
			name:      "by status",
			filter:    domain.OrderFilter{Statuses: []domain.OrderStatus{domain.OrderStatusShipped, domain.OrderStatusCancelled}},
			page:      firstPage,
			want:      []domain.Order{o3, o2},
			wantTotal: 2,
		},
		{
			name:      "by payment status",
			filter:    domain.OrderFilter{PaymentStatuses: []domain.PaymentStatus{domain.PaymentStatusPaid}},
			page:      firstPage,
			want:      []domain.Order{o2},
			wantTotal: 1,
		},
		{
			name:      "search by name is case insensitive",
			filter:    domain.OrderFilter{Search: "PRIYA sh"},
			page:      firstPage,
			want:      []domain.Order{o1},
			wantTotal: 1,
		},
		{
			name:      "search by email",
			filter:    domain.OrderFilter{Search: "@shop.test"},
			page:      firstPage,
			want:      []domain.Order{o1},
			wantTotal: 1,
		},
		{
			name:      "search by id prefix",
			filter:    domain.OrderFilter{Search: o3.ID.String()[:8]},
			page:      firstPage,
			want:      []domain.Order{o3},
			wantTotal: 1,
		},
		{
			name:      "wildcards are literal",
			filter:    domain.OrderFilter{Search: "100%_"},
			page:      firstPage,
			want:      []domain.Order{o2},
			wantTotal: 1,
		},
		{
			name: "created at range is inclusive",
			filter: domain.OrderFilter{CreatedAt: &domain.TimeRange{
				After:  lo.ToPtr(base),
				Before: lo.ToPtr(base.Add(24 * time.Hour)),
			}},
			page:      firstPage,
			want:      []domain.Order{o2, o1},
			wantTotal: 2,
		},
		{
			name:      "second page",
			page:      domain.Page{Number: 2, Limit: 2},
			want:      []domain.Order{o1},
			wantTotal: 3,
		},
		{
			name:      "no match",
			filter:    domain.OrderFilter{Search: "nobody"},
			page:      firstPage,
			wantTotal: 0,
		},
		{
			name:      "invalid page",
			page:      domain.Page{},
			wantError: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()

			got, err := suite.repo.SearchOrders(ctx, tt.filter, tt.page)
			if tt.wantError != nil {
				require.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.wantTotal, got.Total)
			require.Len(t, got.Orders, len(tt.want))
			for i := range tt.want {
				assertOrder(t, tt.want[i], got.Orders[i])
			}
		})
	}
}

func (suite *orderRepositorySuite) TestOutbox() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	order := randomOrder(gofakeit.UUID())
	event := placedEvent(order)
	suite.placeOrdersWithEvents(map[*domain.Order]domain.OrderEvent{&order: event})

	pending, err := suite.outbox.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	msg := pending[0]
	assert.Equal(t, event.ID, msg.EventID)
	assert.Equal(t, domain.EventOrderPlaced, msg.EventType)
	assert.Equal(t, order.ID.String(), msg.Key)

	var decoded domain.OrderEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	assert.Equal(t, order.ID, decoded.OrderID)
	assert.Equal(t, domain.OrderStatusProcessing, decoded.Status)

	require.NoError(t, suite.outbox.MarkSent(ctx, []int64{msg.ID}))

	pending, err = suite.outbox.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func (suite *orderRepositorySuite) fillCart(order domain.Order) domain.Cart {
	ctx := suite.T().Context()

	for _, item := range order.Items {
		suite.Require().NoError(suite.carts.SetItem(ctx, order.OwnerID, item.ProductID, item.Quantity))
	}

	cart, err := suite.carts.GetCart(ctx, order.OwnerID)
	suite.Require().NoError(err)

	return cart
}

func (suite *orderRepositorySuite) placeOrders(orders ...domain.Order) {
	events := make(map[*domain.Order]domain.OrderEvent, len(orders))
	for i := range orders {
		events[&orders[i]] = placedEvent(orders[i])
	}
	suite.placeOrdersWithEvents(events)
}

func (suite *orderRepositorySuite) placeOrdersWithEvents(events map[*domain.Order]domain.OrderEvent) {
	ctx := suite.T().Context()

	for order, event := range events {
		cart := suite.fillCart(*order)
		_, err := suite.repo.PlaceOrder(ctx, *order, cart.Version, "", event)
		suite.Require().NoError(err)
	}
}

func (suite *orderRepositorySuite) deleteAll() {
	_, err := suite.pool.Exec(suite.T().Context(),
		"TRUNCATE TABLE outbox, order_idempotency, order_items, orders, cart_items, carts CASCADE")
	suite.NoError(err)
}
