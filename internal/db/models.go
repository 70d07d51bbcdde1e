package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Order struct {
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
	Version           int64
}

type OrderItem struct {
	OrderID   uuid.UUID
	Position  int32
	ProductID string
	Quantity  int32
	UnitPrice decimal.Decimal
}

type Outbox struct {
	ID        int64
	EventID   uuid.UUID
	EventType string
	Key       string
	Payload   []byte
	CreatedAt time.Time
	SentAt    *time.Time
}
