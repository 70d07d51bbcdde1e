package repository

import (
	"context"
	"errors"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/storefront/internal/db"
	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/samber/lo"
)

type cartRepository struct {
	q    *db.Queries
	pool *pgxpool.Pool
}

func NewCart(pool *pgxpool.Pool) port.CartRepository {
	return &cartRepository{
		q:    db.New(pool),
		pool: pool,
	}
}

func NewCartWithTx(tx pgx.Tx) port.CartRepository {
	return &cartRepository{
		q:    db.New(tx),
		pool: nil, // use provided transaction instead
	}
}

func (r *cartRepository) GetCart(ctx context.Context, ownerID string) (domain.Cart, error) {
	if ownerID == "" {
		return domain.Cart{}, fmt.Errorf("ownerID is empty")
	}

	rows, err := r.q.GetCart(ctx, ownerID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("q.GetCart: %w", err)
	}

	return mapGetCartRowsToDomain(ownerID, rows), nil
}

// SetItem locks the cart row before touching items so that it serializes with checkout.
func (r *cartRepository) SetItem(ctx context.Context, ownerID, productID string, quantity int) error {
	if ownerID == "" || productID == "" {
		return fmt.Errorf("ownerID or productID is empty")
	}
	if err := domain.ValidateQuantity(quantity); err != nil {
		return err
	}

	if err := r.withTx(ctx, func(q *db.Queries) error {
		if _, err := q.TouchCart(ctx, ownerID); err != nil {
			return fmt.Errorf("q.TouchCart: %w", err)
		}

		arg := db.UpsertCartItemParams{
			OwnerID:   ownerID,
			ProductID: productID,
			Quantity:  int32(quantity),
		}
		if err := q.UpsertCartItem(ctx, arg); err != nil {
			return fmt.Errorf("q.UpsertCartItem: %w", err)
		}

		return nil
	}); err != nil {
		return fmt.Errorf("r.withTx: %w", err)
	}

	return nil
}

func (r *cartRepository) DeleteItem(ctx context.Context, ownerID, productID string) (bool, error) {
	return r.withTxBool(ctx, func(q *db.Queries) (bool, error) {
		if _, err := q.LockCart(ctx, ownerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return false, nil
			}
			return false, fmt.Errorf("q.LockCart: %w", err)
		}

		rowsAffected, err := q.DeleteCartItem(ctx, db.DeleteCartItemParams{
			OwnerID:   ownerID,
			ProductID: productID,
		})
		if err != nil {
			return false, fmt.Errorf("q.DeleteCartItem: %w", err)
		}

		if rowsAffected == 0 {
			return false, nil
		}

		if _, err := q.BumpCartVersion(ctx, ownerID); err != nil {
			return false, fmt.Errorf("q.BumpCartVersion: %w", err)
		}

		return true, nil
	})
}

func (r *cartRepository) ClearCart(ctx context.Context, ownerID string) error {
	_, err := r.withTxBool(ctx, func(q *db.Queries) (bool, error) {
		if _, err := q.LockCart(ctx, ownerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return false, nil
			}
			return false, fmt.Errorf("q.LockCart: %w", err)
		}

		rowsAffected, err := q.DeleteCartItems(ctx, ownerID)
		if err != nil {
			return false, fmt.Errorf("q.DeleteCartItems: %w", err)
		}

		if rowsAffected == 0 {
			return false, nil
		}

		if _, err := q.BumpCartVersion(ctx, ownerID); err != nil {
			return false, fmt.Errorf("q.BumpCartVersion: %w", err)
		}

		return true, nil
	})
	if err != nil {
		return fmt.Errorf("r.withTxBool: %w", err)
	}

	return nil
}

func (r *cartRepository) withTx(ctx context.Context, fn func(q *db.Queries) error) error {
	_, err := withTx(ctx, r.pool, r.q, func(q *db.Queries) (struct{}, error) {
		err := fn(q)
		return struct{}{}, err
	})
	return err
}

func (r *cartRepository) withTxBool(ctx context.Context, fn func(q *db.Queries) (bool, error)) (bool, error) {
	return withTx(ctx, r.pool, r.q, fn)
}

func mapGetCartRowsToDomain(ownerID string, rows []db.GetCartRow) domain.Cart {
	cart := domain.EmptyCart(ownerID)

	for _, row := range rows {
		cart.Version = row.Version

		// LEFT JOIN yields a single row with NULL item columns for an empty cart
		if row.ProductID == nil {
			continue
		}

		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: *row.ProductID,
			Quantity:  int(lo.FromPtr(row.Quantity)),
			CreatedAt: lo.FromPtr(row.CreatedAt),
			UpdatedAt: lo.FromPtr(row.UpdatedAt),
		})
	}

	return cart
}
