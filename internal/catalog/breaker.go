package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/sony/gobreaker/v2"
)

type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// breakerCatalog fails fast with domain.ErrUnavailable while the catalog keeps failing.
// Not-found answers count as successes.
type breakerCatalog struct {
	next port.Catalog
	cb   *gobreaker.CircuitBreaker[domain.Product]
}

func WithBreaker(next port.Catalog, settings BreakerSettings, log *slog.Logger) port.Catalog {
	failures := settings.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}

	cb := gobreaker.NewCircuitBreaker[domain.Product](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &breakerCatalog{next: next, cb: cb}
}

func (c *breakerCatalog) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	product, err := c.cb.Execute(func() (domain.Product, error) {
		return c.next.GetProduct(ctx, productID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return product, fmt.Errorf("catalog: %w: %w", err, domain.ErrUnavailable)
	}

	return product, err
}
