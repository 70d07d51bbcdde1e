package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderUpdated       = "order.updated"
	EventOrderCancelled     = "order.cancelled"
)

// OrderEvent is published through the outbox after an order is written.
type OrderEvent struct {
	ID            uuid.UUID     `json:"id"`
	Type          string        `json:"type"`
	OrderID       uuid.UUID     `json:"orderId"`
	OwnerID       string        `json:"ownerId"`
	Status        OrderStatus   `json:"status"`
	PrevStatus    OrderStatus   `json:"prevStatus,omitempty"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	TotalAmount   string        `json:"totalAmount"`
	Currency      string        `json:"currency"`
	OccurredAt    time.Time     `json:"occurredAt"`
}

func NewOrderEvent(eventType string, prev OrderStatus, o Order, now time.Time) OrderEvent {
	return OrderEvent{
		ID:            uuid.New(),
		Type:          eventType,
		OrderID:       o.ID,
		OwnerID:       o.OwnerID,
		Status:        o.Status,
		PrevStatus:    prev,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount.Amount.String(),
		Currency:      o.TotalAmount.Currency.String(),
		OccurredAt:    now,
	}
}

// OutboxMessage is a stored event waiting to be relayed.
type OutboxMessage struct {
	ID        int64
	EventID   uuid.UUID
	EventType string
	Key       string
	Payload   []byte
	CreatedAt time.Time
}
