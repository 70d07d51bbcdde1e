package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/storefront/internal/db"
	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/samber/lo"
	"golang.org/x/text/currency"
	"strings"
	"time"
)

type orderRepository struct {
	q    *db.Queries
	pool *pgxpool.Pool
}

func NewOrder(pool *pgxpool.Pool) port.OrderRepository {
	return &orderRepository{
		q:    db.New(pool),
		pool: pool,
	}
}

func NewOrderWithTx(tx pgx.Tx) port.OrderRepository {
	return &orderRepository{
		q:    db.New(tx),
		pool: nil, // use provided transaction instead
	}
}

func (r *orderRepository) GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	var o domain.Order

	order, err := r.withTxOrder(ctx, func(q *db.Queries) (domain.Order, error) {
		return getOrder(ctx, q, orderID)
	})
	if err != nil {
		return o, fmt.Errorf("r.withTxOrder: %w", err)
	}

	return order, nil
}

func (r *orderRepository) ListOrdersByOwner(ctx context.Context, ownerID string) ([]domain.Order, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("ownerID is empty")
	}

	orders, err := r.withTxOrders(ctx, func(q *db.Queries) ([]domain.Order, error) {
		dbOrders, err := q.ListOrdersByOwner(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("q.ListOrdersByOwner: %w", err)
		}

		return loadOrderItems(ctx, q, dbOrders)
	})
	if err != nil {
		return nil, fmt.Errorf("r.withTxOrders: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) SearchOrders(ctx context.Context, filter domain.OrderFilter, page domain.Page) (domain.OrderPage, error) {
	result := domain.OrderPage{Page: page}

	if err := filter.Validate(); err != nil {
		return result, fmt.Errorf("filter.Validate: %w", err)
	}
	if page.Number < 1 || page.Limit < 1 {
		return result, fmt.Errorf("page[%d/%d] is not valid: %w", page.Number, page.Limit, domain.ErrInvalidInput)
	}

	arg := mapDomainOrderFilterToDBFilter(filter, page)

	type searchResult struct {
		orders []domain.Order
		total  int64
	}

	res, err := withTx(ctx, r.pool, r.q, func(q *db.Queries) (searchResult, error) {
		total, err := q.CountOrders(ctx, arg)
		if err != nil {
			return searchResult{}, fmt.Errorf("q.CountOrders: %w", err)
		}

		dbOrders, err := q.SearchOrders(ctx, arg)
		if err != nil {
			return searchResult{}, fmt.Errorf("q.SearchOrders: %w", err)
		}

		orders, err := loadOrderItems(ctx, q, dbOrders)
		if err != nil {
			return searchResult{}, fmt.Errorf("loadOrderItems: %w", err)
		}

		return searchResult{orders: orders, total: total}, nil
	})
	if err != nil {
		return result, fmt.Errorf("withTx: %w", err)
	}

	result.Orders = res.orders
	result.Total = int(res.total)

	return result, nil
}

func (r *orderRepository) PlaceOrder(ctx context.Context, order domain.Order, cartVersion int64, idempotencyKey string, event domain.OrderEvent) (domain.Order, error) {
	var o domain.Order

	if err := order.Validate(); err != nil {
		return o, fmt.Errorf("order.Validate: %w", err)
	}

	arg, err := mapDomainOrderToInsertParams(order)
	if err != nil {
		return o, fmt.Errorf("mapDomainOrderToInsertParams: %w", err)
	}

	placed, err := r.withTxOrder(ctx, func(q *db.Queries) (domain.Order, error) {
		version, err := q.LockCart(ctx, order.OwnerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return o, fmt.Errorf("q.LockCart: %w", domain.ErrStorageConflict)
			}
			return o, fmt.Errorf("q.LockCart: %w", err)
		}

		if version != cartVersion {
			return o, fmt.Errorf("cart version %d != snapshot %d: %w", version, cartVersion, domain.ErrStorageConflict)
		}

		dbOrder, err := q.InsertOrder(ctx, arg)
		if err != nil {
			if isNumericOverflow(err) {
				return o, fmt.Errorf("q.InsertOrder: amount out of range: %w", errors.Join(domain.ErrInvalidInput, err))
			}
			return o, fmt.Errorf("q.InsertOrder: %w", err)
		}

		// TODO: batch item inserts with pgx.Batch once orders grow beyond a handful of lines
		for i, item := range order.Items {
			if err := q.InsertOrderItem(ctx, db.InsertOrderItemParams{
				OrderID:   order.ID,
				Position:  int32(i),
				ProductID: item.ProductID,
				Quantity:  int32(item.Quantity),
				UnitPrice: item.UnitPrice.Amount,
			}); err != nil {
				if isNumericOverflow(err) {
					return o, fmt.Errorf("q.InsertOrderItem: amount out of range: %w", errors.Join(domain.ErrInvalidInput, err))
				}
				return o, fmt.Errorf("q.InsertOrderItem: %w", err)
			}
		}

		if idempotencyKey != "" {
			if err := q.InsertIdempotencyKey(ctx, db.InsertIdempotencyKeyParams{
				OwnerID:        order.OwnerID,
				IdempotencyKey: idempotencyKey,
				OrderID:        order.ID,
			}); err != nil {
				if isUniqueViolation(err) {
					return o, fmt.Errorf("q.InsertIdempotencyKey: %w", domain.ErrDuplicateOrder)
				}
				return o, fmt.Errorf("q.InsertIdempotencyKey: %w", err)
			}
		}

		if err := insertOutbox(ctx, q, event); err != nil {
			return o, fmt.Errorf("insertOutbox: %w", err)
		}

		if _, err := q.DeleteCartItems(ctx, order.OwnerID); err != nil {
			return o, fmt.Errorf("q.DeleteCartItems: %w", err)
		}

		if _, err := q.BumpCartVersion(ctx, order.OwnerID); err != nil {
			return o, fmt.Errorf("q.BumpCartVersion: %w", err)
		}

		dbItems := lo.Map(order.Items, func(item domain.OrderItem, i int) db.OrderItem {
			return db.OrderItem{
				OrderID:   order.ID,
				Position:  int32(i),
				ProductID: item.ProductID,
				Quantity:  int32(item.Quantity),
				UnitPrice: item.UnitPrice.Amount,
			}
		})

		return mapDBOrderToDomain(dbOrder, dbItems)
	})
	if err != nil {
		return o, fmt.Errorf("r.withTxOrder: %w", err)
	}

	return placed, nil
}

func (r *orderRepository) GetOrderIDByIdempotencyKey(ctx context.Context, ownerID, key string) (uuid.UUID, error) {
	orderID, err := r.q.GetOrderIDByIdempotencyKey(ctx, db.GetOrderIDByIdempotencyKeyParams{
		OwnerID:        ownerID,
		IdempotencyKey: key,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("q.GetOrderIDByIdempotencyKey: %w", domain.ErrNotFound)
		}
		return uuid.Nil, fmt.Errorf("q.GetOrderIDByIdempotencyKey: %w", err)
	}

	return orderID, nil
}

func (r *orderRepository) UpdateOrder(ctx context.Context, order domain.Order, expected domain.OrderStatus, event domain.OrderEvent) (domain.Order, error) {
	var o domain.Order

	if order.ID == uuid.Nil {
		return o, fmt.Errorf("orderID is empty")
	}

	updated, err := r.withTxOrder(ctx, func(q *db.Queries) (domain.Order, error) {
		dbOrder, err := q.UpdateOrderStatus(ctx, db.UpdateOrderStatusParams{
			ID:                order.ID,
			ExpectedStatus:    string(expected),
			OrderStatus:       string(order.Status),
			PaymentStatus:     string(order.PaymentStatus),
			TrackingNumber:    order.TrackingNumber,
			Notes:             order.Notes,
			EstimatedDelivery: order.EstimatedDelivery,
			UpdatedAt:         order.UpdatedAt,
			ExpectedVersion:   order.Version,
		})
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return o, fmt.Errorf("q.UpdateOrderStatus: %w", err)
			}

			// tell a missing order apart from a lost race
			stored, err := q.GetOrder(ctx, order.ID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return o, fmt.Errorf("q.GetOrder: %w", domain.ErrNotFound)
				}
				return o, fmt.Errorf("q.GetOrder: %w", err)
			}
			if stored.OrderStatus != string(expected) {
				return o, fmt.Errorf("q.UpdateOrderStatus: status is no longer %s: %w", expected, domain.ErrStorageConflict)
			}
			return o, fmt.Errorf("q.UpdateOrderStatus: version[%d] is stale: %w", order.Version, domain.ErrStorageConflict)
		}

		dbItems, err := q.GetOrderItems(ctx, []uuid.UUID{order.ID})
		if err != nil {
			return o, fmt.Errorf("q.GetOrderItems: %w", err)
		}

		if err := insertOutbox(ctx, q, event); err != nil {
			return o, fmt.Errorf("insertOutbox: %w", err)
		}

		return mapDBOrderToDomain(dbOrder, dbItems)
	})
	if err != nil {
		return o, fmt.Errorf("r.withTxOrder: %w", err)
	}

	return updated, nil
}

func (r *orderRepository) withTxOrder(ctx context.Context, fn func(q *db.Queries) (domain.Order, error)) (domain.Order, error) {
	return withTx(ctx, r.pool, r.q, fn)
}

func (r *orderRepository) withTxOrders(ctx context.Context, fn func(q *db.Queries) ([]domain.Order, error)) ([]domain.Order, error) {
	return withTx(ctx, r.pool, r.q, fn)
}

func getOrder(ctx context.Context, q *db.Queries, orderID uuid.UUID) (domain.Order, error) {
	var o domain.Order

	dbOrder, err := q.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, fmt.Errorf("q.GetOrder: %w", domain.ErrNotFound)
		}
		return o, fmt.Errorf("q.GetOrder: %w", err)
	}

	dbItems, err := q.GetOrderItems(ctx, []uuid.UUID{orderID})
	if err != nil {
		return o, fmt.Errorf("q.GetOrderItems: %w", err)
	}

	order, err := mapDBOrderToDomain(dbOrder, dbItems)
	if err != nil {
		return o, fmt.Errorf("mapDBOrderToDomain: %w", err)
	}

	return order, nil
}

// loadOrderItems fetches items of all orders in one query and keeps the orders' sequence.
func loadOrderItems(ctx context.Context, q *db.Queries, dbOrders []db.Order) ([]domain.Order, error) {
	if len(dbOrders) == 0 {
		return []domain.Order{}, nil
	}

	ids := lo.Map(dbOrders, func(o db.Order, _ int) uuid.UUID { return o.ID })

	dbItems, err := q.GetOrderItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("q.GetOrderItems: %w", err)
	}

	itemsByOrder := lo.GroupBy(dbItems, func(item db.OrderItem) uuid.UUID { return item.OrderID })

	orders := make([]domain.Order, 0, len(dbOrders))
	for _, dbOrder := range dbOrders {
		order, err := mapDBOrderToDomain(dbOrder, itemsByOrder[dbOrder.ID])
		if err != nil {
			return nil, fmt.Errorf("mapDBOrderToDomain[%s]: %w", dbOrder.ID, err)
		}
		orders = append(orders, order)
	}

	return orders, nil
}

func insertOutbox(ctx context.Context, q *db.Queries, event domain.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	if err := q.InsertOutbox(ctx, db.InsertOutboxParams{
		EventID:   event.ID,
		EventType: event.Type,
		Key:       event.OrderID.String(),
		Payload:   payload,
	}); err != nil {
		return fmt.Errorf("q.InsertOutbox: %w", err)
	}

	return nil
}

func mapDomainOrderFilterToDBFilter(filter domain.OrderFilter, page domain.Page) db.SearchOrdersParams {
	statuses := lo.Map(filter.Statuses, func(s domain.OrderStatus, _ int) string { return string(s) })
	paymentStatuses := lo.Map(filter.PaymentStatuses, func(s domain.PaymentStatus, _ int) string { return string(s) })

	var createdAfter, createdBefore *time.Time
	if filter.CreatedAt != nil {
		createdAfter = filter.CreatedAt.After
		createdBefore = filter.CreatedAt.Before
	}

	var searchPattern *string
	if search := strings.TrimSpace(filter.Search); search != "" {
		searchPattern = lo.ToPtr("%" + escapeLike(search) + "%")
	}

	return db.SearchOrdersParams{
		Statuses:        nilSliceIfEmpty(statuses),
		PaymentStatuses: nilSliceIfEmpty(paymentStatuses),
		OwnerIds:        nilSliceIfEmpty(filter.OwnerIDs),
		SearchPattern:   searchPattern,
		CreatedAfter:    createdAfter,
		CreatedBefore:   createdBefore,
		Limit:           int32(page.Limit),
		Offset:          int32(page.Offset()),
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func mapDomainOrderToInsertParams(order domain.Order) (db.InsertOrderParams, error) {
	var arg db.InsertOrderParams

	shipping, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return arg, fmt.Errorf("json.Marshal shippingAddress: %w", err)
	}

	billing, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return arg, fmt.Errorf("json.Marshal billingAddress: %w", err)
	}

	return db.InsertOrderParams{
		ID:                order.ID,
		OwnerID:           order.OwnerID,
		Currency:          order.TotalAmount.Currency.String(),
		Subtotal:          order.Subtotal.Amount,
		ShippingCost:      order.ShippingCost.Amount,
		Tax:               order.Tax.Amount,
		TotalAmount:       order.TotalAmount.Amount,
		ShippingAddress:   shipping,
		BillingAddress:    billing,
		PaymentMethod:     order.PaymentMethod,
		PaymentStatus:     string(order.PaymentStatus),
		OrderStatus:       string(order.Status),
		TrackingNumber:    order.TrackingNumber,
		Notes:             order.Notes,
		EstimatedDelivery: order.EstimatedDelivery,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}, nil
}

func mapDBOrderToDomain(dbOrder db.Order, dbItems []db.OrderItem) (domain.Order, error) {
	var o domain.Order

	parsedCurrency, err := currency.ParseISO(dbOrder.Currency)
	if err != nil {
		return o, fmt.Errorf("currency[%s] is not valid: %w", dbOrder.Currency, err)
	}

	status, err := domain.ToOrderStatus(dbOrder.OrderStatus)
	if err != nil {
		return o, fmt.Errorf("domain.ToOrderStatus[%s]: %w", dbOrder.OrderStatus, err)
	}

	paymentStatus, err := domain.ToPaymentStatus(dbOrder.PaymentStatus)
	if err != nil {
		return o, fmt.Errorf("domain.ToPaymentStatus[%s]: %w", dbOrder.PaymentStatus, err)
	}

	var shipping, billing domain.Address
	if err := json.Unmarshal(dbOrder.ShippingAddress, &shipping); err != nil {
		return o, fmt.Errorf("json.Unmarshal shippingAddress: %w", err)
	}
	if err := json.Unmarshal(dbOrder.BillingAddress, &billing); err != nil {
		return o, fmt.Errorf("json.Unmarshal billingAddress: %w", err)
	}

	items := make([]domain.OrderItem, 0, len(dbItems))
	for _, item := range dbItems {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  int(item.Quantity),
			UnitPrice: domain.NewMoney(item.UnitPrice, parsedCurrency),
		})
	}

	return domain.Order{
		ID:                dbOrder.ID,
		OwnerID:           dbOrder.OwnerID,
		Items:             items,
		Subtotal:          domain.NewMoney(dbOrder.Subtotal, parsedCurrency),
		ShippingCost:      domain.NewMoney(dbOrder.ShippingCost, parsedCurrency),
		Tax:               domain.NewMoney(dbOrder.Tax, parsedCurrency),
		TotalAmount:       domain.NewMoney(dbOrder.TotalAmount, parsedCurrency),
		ShippingAddress:   shipping,
		BillingAddress:    billing,
		PaymentMethod:     dbOrder.PaymentMethod,
		PaymentStatus:     paymentStatus,
		Status:            status,
		TrackingNumber:    dbOrder.TrackingNumber,
		Notes:             dbOrder.Notes,
		EstimatedDelivery: dbOrder.EstimatedDelivery,
		CreatedAt:         dbOrder.CreatedAt,
		UpdatedAt:         dbOrder.UpdatedAt,
		Version:           dbOrder.Version,
	}, nil
}
