package db

import (
	"context"
	"time"
)

const getCart = `-- name: GetCart :many
SELECT c.version, i.product_id, i.quantity, i.created_at, i.updated_at
FROM carts c
         LEFT JOIN cart_items i ON i.owner_id = c.owner_id
WHERE c.owner_id = $1
ORDER BY i.created_at, i.product_id
`

type GetCartRow struct {
	Version   int64
	ProductID *string
	Quantity  *int32
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

func (q *Queries) GetCart(ctx context.Context, ownerID string) ([]GetCartRow, error) {
	rows, err := q.db.Query(ctx, getCart, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetCartRow
	for rows.Next() {
		var i GetCartRow
		if err := rows.Scan(
			&i.Version,
			&i.ProductID,
			&i.Quantity,
			&i.CreatedAt,
			&i.UpdatedAt,
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

const touchCart = `-- name: TouchCart :one
INSERT INTO carts (owner_id)
VALUES ($1)
ON CONFLICT (owner_id) DO UPDATE SET version    = carts.version + 1,
                                     updated_at = now()
RETURNING version
`

// TouchCart creates the cart or bumps its version, locking the cart row until the end of the transaction.
func (q *Queries) TouchCart(ctx context.Context, ownerID string) (int64, error) {
	row := q.db.QueryRow(ctx, touchCart, ownerID)
	var version int64
	err := row.Scan(&version)
	return version, err
}

const lockCart = `-- name: LockCart :one
SELECT version
FROM carts
WHERE owner_id = $1
    FOR UPDATE
`

func (q *Queries) LockCart(ctx context.Context, ownerID string) (int64, error) {
	row := q.db.QueryRow(ctx, lockCart, ownerID)
	var version int64
	err := row.Scan(&version)
	return version, err
}

const bumpCartVersion = `-- name: BumpCartVersion :one
UPDATE carts
SET version    = version + 1,
    updated_at = now()
WHERE owner_id = $1
RETURNING version
`

func (q *Queries) BumpCartVersion(ctx context.Context, ownerID string) (int64, error) {
	row := q.db.QueryRow(ctx, bumpCartVersion, ownerID)
	var version int64
	err := row.Scan(&version)
	return version, err
}

const upsertCartItem = `-- name: UpsertCartItem :exec
INSERT INTO cart_items (owner_id, product_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (owner_id, product_id) DO UPDATE SET quantity   = EXCLUDED.quantity,
                                                 updated_at = now()
`

type UpsertCartItemParams struct {
	OwnerID   string
	ProductID string
	Quantity  int32
}

func (q *Queries) UpsertCartItem(ctx context.Context, arg UpsertCartItemParams) error {
	_, err := q.db.Exec(ctx, upsertCartItem, arg.OwnerID, arg.ProductID, arg.Quantity)
	return err
}

const deleteCartItem = `-- name: DeleteCartItem :execrows
DELETE
FROM cart_items
WHERE owner_id = $1
  AND product_id = $2
`

type DeleteCartItemParams struct {
	OwnerID   string
	ProductID string
}

func (q *Queries) DeleteCartItem(ctx context.Context, arg DeleteCartItemParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteCartItem, arg.OwnerID, arg.ProductID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteCartItems = `-- name: DeleteCartItems :execrows
DELETE
FROM cart_items
WHERE owner_id = $1
`

func (q *Queries) DeleteCartItems(ctx context.Context, ownerID string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteCartItems, ownerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
