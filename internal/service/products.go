package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const defaultMaxConcurrentLookups = 10

type productLoader struct {
	catalog       port.Catalog
	maxConcurrent int
	log           *slog.Logger
}

// load resolves every product concurrently and fails on the first error.
func (l productLoader) load(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	productIDs = lo.Uniq(productIDs)
	products := make([]domain.Product, len(productIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.maxConcurrent)

	for i, productID := range productIDs {
		g.Go(func() error {
			product, err := l.catalog.GetProduct(gctx, productID)
			if err != nil {
				return fmt.Errorf("catalog.GetProduct[%s]: %w", productID, err)
			}
			products[i] = product
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[string]domain.Product, len(productIDs))
	for i, productID := range productIDs {
		result[productID] = products[i]
	}

	return result, nil
}

// expand resolves products for display. Missing products are skipped and
// catalog failures are logged, so the result may be partial.
func (l productLoader) expand(ctx context.Context, productIDs []string) map[string]*domain.Product {
	productIDs = lo.Uniq(productIDs)
	result := make(map[string]*domain.Product, len(productIDs))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.maxConcurrent)

	for _, productID := range productIDs {
		g.Go(func() error {
			product, err := l.catalog.GetProduct(gctx, productID)
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					l.log.WarnContext(ctx, "product lookup failed", "product_id", productID, "error", err)
				}
				return nil
			}

			mu.Lock()
			result[productID] = &product
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	return result
}
