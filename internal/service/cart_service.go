package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"golang.org/x/sync/singleflight"
)

const (
	cacheWriteTimeout = time.Second
	cartLoadTimeout   = 5 * time.Second
)

type CartService struct {
	repo     port.CartRepository
	cache    port.CartCache
	products productLoader
	log      *slog.Logger
	sfg      singleflight.Group
}

func NewCartService(repo port.CartRepository, catalog port.Catalog, cache port.CartCache, log *slog.Logger) *CartService {
	return &CartService{
		repo:  repo,
		cache: cache,
		products: productLoader{
			catalog:       catalog,
			maxConcurrent: defaultMaxConcurrentLookups,
			log:           log,
		},
		log: log,
	}
}

// GetCart returns the user's cart, or an empty cart when none is stored.
func (s *CartService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, domain.ErrUnauthenticated
	}

	// the load is shared by every waiter, so it must outlive the caller that started it
	ch := s.sfg.DoChan(userID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cartLoadTimeout)
		defer cancel()

		cart, err := s.cache.Get(loadCtx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, port.ErrCacheMiss) {
			s.log.WarnContext(loadCtx, "cart cache get failed", "user_id", userID, "error", err)
		}

		cart, err = s.repo.GetCart(loadCtx, userID)
		if err != nil {
			return nil, fmt.Errorf("repo.GetCart: %w", err)
		}

		s.storeInCache(loadCtx, cart)

		return cart, nil
	})

	select {
	case <-ctx.Done():
		return domain.Cart{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Cart{}, res.Err
		}

		cart := res.Val.(domain.Cart)
		cart.Items = slices.Clone(cart.Items)

		return cart, nil
	}
}

// GetCartView returns the cart joined with current catalog data.
func (s *CartService) GetCartView(ctx context.Context, userID string) (domain.CartView, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return domain.CartView{}, err
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products := s.products.expand(ctx, ids)

	lines := make([]domain.CartLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, domain.CartLine{Item: item, Product: products[item.ProductID]})
	}

	return domain.CartView{Cart: cart, Lines: lines}, nil
}

// SetItem sets the quantity of a product in the cart, replacing any previous quantity.
// The product must exist in the catalog.
func (s *CartService) SetItem(ctx context.Context, userID, productID string, quantity int) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, domain.ErrUnauthenticated
	}
	if productID == "" {
		return domain.Cart{}, fmt.Errorf("productID is empty: %w", domain.ErrInvalidInput)
	}
	if err := domain.ValidateQuantity(quantity); err != nil {
		return domain.Cart{}, err
	}

	if _, err := s.products.catalog.GetProduct(ctx, productID); err != nil {
		return domain.Cart{}, fmt.Errorf("catalog.GetProduct: %w", err)
	}

	if err := s.repo.SetItem(ctx, userID, productID, quantity); err != nil {
		return domain.Cart{}, fmt.Errorf("repo.SetItem: %w", err)
	}

	return s.refresh(ctx, userID)
}

// RemoveItem removes a product from the cart. Removing an absent product is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (domain.Cart, error) {
	if userID == "" {
		return domain.Cart{}, domain.ErrUnauthenticated
	}

	removed, err := s.repo.DeleteItem(ctx, userID, productID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("repo.DeleteItem: %w", err)
	}

	if !removed {
		return s.GetCart(ctx, userID)
	}

	return s.refresh(ctx, userID)
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}

	if err := s.repo.ClearCart(ctx, userID); err != nil {
		return fmt.Errorf("repo.ClearCart: %w", err)
	}

	if _, err := s.refresh(ctx, userID); err != nil {
		return err
	}

	return nil
}

// refresh reloads the cart after a mutation and writes it through to the cache.
func (s *CartService) refresh(ctx context.Context, userID string) (domain.Cart, error) {
	return refreshCachedCart(ctx, s.repo, s.cache, s.log, userID)
}

func (s *CartService) storeInCache(ctx context.Context, cart domain.Cart) {
	storeCart(ctx, s.cache, s.log, cart)
}

func refreshCachedCart(ctx context.Context, repo port.CartRepository, cache port.CartCache, log *slog.Logger, userID string) (domain.Cart, error) {
	cart, err := repo.GetCart(ctx, userID)
	if err != nil {
		invalidateCart(ctx, cache, log, userID)
		return domain.Cart{}, fmt.Errorf("repo.GetCart: %w", err)
	}

	storeCart(ctx, cache, log, cart)

	return cart, nil
}

// storeCart is best effort. A failed write drops the entry so that readers fall back to the repository.
func storeCart(ctx context.Context, cache port.CartCache, log *slog.Logger, cart domain.Cart) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()

	if err := cache.Set(ctx, cart); err != nil {
		log.WarnContext(ctx, "cart cache set failed", "user_id", cart.OwnerID, "error", err)
		invalidateCart(ctx, cache, log, cart.OwnerID)
	}
}

func invalidateCart(ctx context.Context, cache port.CartCache, log *slog.Logger, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()

	if err := cache.Delete(ctx, userID); err != nil {
		log.ErrorContext(ctx, "cart cache invalidate failed", "user_id", userID, "error", err)
	}
}
