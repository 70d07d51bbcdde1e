package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/nikolayk812/storefront/internal/db"
	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/goleak"
	"golang.org/x/text/currency"
)

// docker client keep-alive connections outlive the suites
var leakOptions = []goleak.Option{
	goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
}

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return container, "", fmt.Errorf("container.ConnectionString: %w", err)
	}

	if err := db.Migrate(connStr); err != nil {
		return container, "", fmt.Errorf("db.Migrate: %w", err)
	}

	return container, connStr, nil
}

func fakeAddress() domain.Address {
	return domain.Address{
		FullName:   gofakeit.Name(),
		Email:      gofakeit.Email(),
		Phone:      "9876543210",
		Street:     gofakeit.Street(),
		City:       gofakeit.City(),
		State:      gofakeit.State(),
		PostalCode: gofakeit.Zip(),
		Country:    gofakeit.Country(),
	}
}

// randomOrder builds a priced order in INR. Timestamps are truncated to the database precision.
func randomOrder(ownerID string) domain.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)

	var items []domain.OrderItem
	for i := 0; i < gofakeit.Number(1, 4); i++ {
		items = append(items, domain.OrderItem{
			ProductID: uuid.NewString(),
			Quantity:  gofakeit.Number(1, 5),
			UnitPrice: domain.NewMoney(decimal.NewFromFloat(gofakeit.Price(1, 900)), currency.INR),
		})
	}

	totals, err := domain.DefaultPricingPolicy().Price(items)
	if err != nil {
		panic(err)
	}

	return domain.Order{
		ID:                uuid.New(),
		OwnerID:           ownerID,
		Items:             items,
		Subtotal:          totals.Subtotal,
		ShippingCost:      totals.ShippingCost,
		Tax:               totals.Tax,
		TotalAmount:       totals.Total,
		ShippingAddress:   fakeAddress(),
		BillingAddress:    fakeAddress(),
		PaymentMethod:     domain.DefaultPaymentMethod,
		PaymentStatus:     domain.PaymentStatusPending,
		Status:            domain.OrderStatusProcessing,
		TrackingNumber:    nil,
		Notes:             lo.ToPtr(gofakeit.Sentence(5)),
		EstimatedDelivery: now.Add(domain.PlacedDeliveryWindow),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func placedEvent(o domain.Order) domain.OrderEvent {
	return domain.NewOrderEvent(domain.EventOrderPlaced, "", o, o.CreatedAt)
}

func assertOrder(t *testing.T, expected, actual domain.Order) {
	t.Helper()

	currencyComparer := cmp.Comparer(func(x, y currency.Unit) bool {
		return x.String() == y.String()
	})

	decimalComparer := cmp.Comparer(func(x, y decimal.Decimal) bool {
		return x.Equal(y)
	})

	timeComparer := cmp.Comparer(func(x, y time.Time) bool {
		return x.Equal(y)
	})

	opts := cmp.Options{
		currencyComparer,
		decimalComparer,
		timeComparer,
		cmpopts.IgnoreFields(domain.OrderItem{}, "Product"),
		cmpopts.IgnoreFields(domain.Order{}, "Version"),
		cmpopts.EquateEmpty(),
	}

	diff := cmp.Diff(expected, actual, opts)
	assert.Empty(t, diff)
}

func assertCart(t *testing.T, expected domain.Cart, actual domain.Cart) {
	t.Helper()

	opts := cmp.Options{
		cmpopts.IgnoreFields(domain.CartItem{}, "CreatedAt", "UpdatedAt"),
		cmpopts.SortSlices(func(a, b domain.CartItem) bool { return a.ProductID < b.ProductID }),
		cmpopts.EquateEmpty(),
	}

	diff := cmp.Diff(expected, actual, opts)
	assert.Empty(t, diff)
}
