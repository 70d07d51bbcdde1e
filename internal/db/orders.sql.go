package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, owner_id, currency, subtotal, shipping_cost, tax, total_amount, shipping_address, billing_address,
       payment_method, payment_status, order_status, tracking_number, notes, estimated_delivery, created_at, updated_at, version`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.Currency,
		&i.Subtotal,
		&i.ShippingCost,
		&i.Tax,
		&i.TotalAmount,
		&i.ShippingAddress,
		&i.BillingAddress,
		&i.PaymentMethod,
		&i.PaymentStatus,
		&i.OrderStatus,
		&i.TrackingNumber,
		&i.Notes,
		&i.EstimatedDelivery,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.Version,
	)
	return i, err
}

func (q *Queries) queryOrders(ctx context.Context, sql string, args ...interface{}) ([]Order, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertOrder = `-- name: InsertOrder :one
INSERT INTO orders (id, owner_id, currency, subtotal, shipping_cost, tax, total_amount, shipping_address,
                    billing_address, payment_method, payment_status, order_status, tracking_number, notes,
                    estimated_delivery, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
RETURNING ` + orderColumns

type InsertOrderParams struct {
	ID                uuid.UUID
	OwnerID           string
	Currency          string
	Subtotal          decimal.Decimal
	ShippingCost      decimal.Decimal
	Tax               decimal.Decimal
	TotalAmount       decimal.Decimal
	ShippingAddress   []byte
	BillingAddress    []byte
	PaymentMethod     string
	PaymentStatus     string
	OrderStatus       string
	TrackingNumber    *string
	Notes             *string
	EstimatedDelivery time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (q *Queries) InsertOrder(ctx context.Context, arg InsertOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, insertOrder,
		arg.ID,
		arg.OwnerID,
		arg.Currency,
		arg.Subtotal,
		arg.ShippingCost,
		arg.Tax,
		arg.TotalAmount,
		arg.ShippingAddress,
		arg.BillingAddress,
		arg.PaymentMethod,
		arg.PaymentStatus,
		arg.OrderStatus,
		arg.TrackingNumber,
		arg.Notes,
		arg.EstimatedDelivery,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanOrder(row)
}

const insertOrderItem = `-- name: InsertOrderItem :exec
INSERT INTO order_items (order_id, position, product_id, quantity, unit_price)
VALUES ($1, $2, $3, $4, $5)
`

type InsertOrderItemParams struct {
	OrderID   uuid.UUID
	Position  int32
	ProductID string
	Quantity  int32
	UnitPrice decimal.Decimal
}

func (q *Queries) InsertOrderItem(ctx context.Context, arg InsertOrderItemParams) error {
	_, err := q.db.Exec(ctx, insertOrderItem,
		arg.OrderID,
		arg.Position,
		arg.ProductID,
		arg.Quantity,
		arg.UnitPrice,
	)
	return err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	return scanOrder(row)
}

const getOrderItems = `-- name: GetOrderItems :many
SELECT order_id, position, product_id, quantity, unit_price
FROM order_items
WHERE order_id = ANY ($1::uuid[])
ORDER BY order_id, position
`

func (q *Queries) GetOrderItems(ctx context.Context, orderIds []uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, getOrderItems, orderIds)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.OrderID,
			&i.Position,
			&i.ProductID,
			&i.Quantity,
			&i.UnitPrice,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrdersByOwner = `-- name: ListOrdersByOwner :many
SELECT ` + orderColumns + `
FROM orders
WHERE owner_id = $1
ORDER BY created_at DESC, id DESC
`

func (q *Queries) ListOrdersByOwner(ctx context.Context, ownerID string) ([]Order, error) {
	return q.queryOrders(ctx, listOrdersByOwner, ownerID)
}

const searchOrdersWhere = `
WHERE ($1::text[] IS NULL OR order_status = ANY ($1::text[]))
  AND ($2::text[] IS NULL OR payment_status = ANY ($2::text[]))
  AND ($3::text[] IS NULL OR owner_id = ANY ($3::text[]))
  AND ($4::text IS NULL
    OR id::text ILIKE $4::text
    OR shipping_address ->> 'fullName' ILIKE $4::text
    OR shipping_address ->> 'email' ILIKE $4::text)
  AND ($5::timestamptz IS NULL OR created_at >= $5::timestamptz)
  AND ($6::timestamptz IS NULL OR created_at <= $6::timestamptz)
`

const searchOrders = `-- name: SearchOrders :many
SELECT ` + orderColumns + `
FROM orders` + searchOrdersWhere + `
ORDER BY created_at DESC, id DESC
LIMIT $7 OFFSET $8
`

type SearchOrdersParams struct {
	Statuses        []string
	PaymentStatuses []string
	OwnerIds        []string
	// SearchPattern is an ILIKE pattern.
	SearchPattern *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int32
	Offset        int32
}

func (q *Queries) SearchOrders(ctx context.Context, arg SearchOrdersParams) ([]Order, error) {
	return q.queryOrders(ctx, searchOrders,
		arg.Statuses,
		arg.PaymentStatuses,
		arg.OwnerIds,
		arg.SearchPattern,
		arg.CreatedAfter,
		arg.CreatedBefore,
		arg.Limit,
		arg.Offset,
	)
}

const countOrders = `-- name: CountOrders :one
SELECT count(*)
FROM orders` + searchOrdersWhere

func (q *Queries) CountOrders(ctx context.Context, arg SearchOrdersParams) (int64, error) {
	row := q.db.QueryRow(ctx, countOrders,
		arg.Statuses,
		arg.PaymentStatuses,
		arg.OwnerIds,
		arg.SearchPattern,
		arg.CreatedAfter,
		arg.CreatedBefore,
	)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET order_status       = $3,
    payment_status     = $4,
    tracking_number    = $5,
    notes              = $6,
    estimated_delivery = $7,
    updated_at         = $8,
    version            = version + 1
WHERE id = $1
  AND order_status = $2
  AND version = $9
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID                uuid.UUID
	ExpectedStatus    string
	OrderStatus       string
	PaymentStatus     string
	TrackingNumber    *string
	Notes             *string
	EstimatedDelivery time.Time
	UpdatedAt         time.Time
	ExpectedVersion   int64
}

// UpdateOrderStatus returns pgx.ErrNoRows when the order is missing, its status is no longer ExpectedStatus
// or it was updated since ExpectedVersion was read.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus,
		arg.ID,
		arg.ExpectedStatus,
		arg.OrderStatus,
		arg.PaymentStatus,
		arg.TrackingNumber,
		arg.Notes,
		arg.EstimatedDelivery,
		arg.UpdatedAt,
		arg.ExpectedVersion,
	)
	return scanOrder(row)
}

const insertIdempotencyKey = `-- name: InsertIdempotencyKey :exec
INSERT INTO order_idempotency (owner_id, idempotency_key, order_id)
VALUES ($1, $2, $3)
`

type InsertIdempotencyKeyParams struct {
	OwnerID        string
	IdempotencyKey string
	OrderID        uuid.UUID
}

func (q *Queries) InsertIdempotencyKey(ctx context.Context, arg InsertIdempotencyKeyParams) error {
	_, err := q.db.Exec(ctx, insertIdempotencyKey, arg.OwnerID, arg.IdempotencyKey, arg.OrderID)
	return err
}

const getOrderIDByIdempotencyKey = `-- name: GetOrderIDByIdempotencyKey :one
SELECT order_id
FROM order_idempotency
WHERE owner_id = $1
  AND idempotency_key = $2
`

type GetOrderIDByIdempotencyKeyParams struct {
	OwnerID        string
	IdempotencyKey string
}

func (q *Queries) GetOrderIDByIdempotencyKey(ctx context.Context, arg GetOrderIDByIdempotencyKeyParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, getOrderIDByIdempotencyKey, arg.OwnerID, arg.IdempotencyKey)
	var orderID uuid.UUID
	err := row.Scan(&orderID)
	return orderID, err
}
