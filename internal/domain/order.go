package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const DefaultPaymentMethod = "card"

const (
	PlacedDeliveryWindow  = 7 * 24 * time.Hour
	ShippedDeliveryWindow = 3 * 24 * time.Hour
)

// Order is immutable except for its status fields, tracking number, notes and estimated delivery.
type Order struct {
	ID      uuid.UUID
	OwnerID string
	Items   []OrderItem

	Subtotal     Money
	ShippingCost Money
	Tax          Money
	TotalAmount  Money

	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   string
	PaymentStatus   PaymentStatus
	Status          OrderStatus
	TrackingNumber  *string
	Notes           *string

	EstimatedDelivery time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Version is assigned by storage and grows with every update. Zero until the order is stored.
	Version int64
}

type OrderItem struct {
	ProductID string
	Quantity  int
	UnitPrice Money

	// Product is populated on the read side only and never persisted.
	Product *Product
}

func (i OrderItem) LineTotal() Money {
	return i.UnitPrice.Mul(i.Quantity)
}

// Validate checks the pricing invariants of the order:
// subtotal is the exact sum of line totals and total is subtotal + shipping + tax.
func (o Order) Validate() error {
	if o.OwnerID == "" {
		return errors.New("ownerID is empty")
	}
	if len(o.Items) == 0 {
		return errors.New("no items in order")
	}

	seen := make(map[string]struct{}, len(o.Items))
	subtotal := ZeroMoney(o.Subtotal.Currency)
	for _, item := range o.Items {
		if err := ValidateQuantity(item.Quantity); err != nil {
			return fmt.Errorf("item[%s]: %w", item.ProductID, err)
		}
		if _, ok := seen[item.ProductID]; ok {
			return fmt.Errorf("item[%s] is duplicated", item.ProductID)
		}
		seen[item.ProductID] = struct{}{}

		var err error
		subtotal, err = subtotal.Add(item.LineTotal())
		if err != nil {
			return fmt.Errorf("item[%s]: %w", item.ProductID, err)
		}
	}

	if !subtotal.Equal(o.Subtotal) {
		return fmt.Errorf("subtotal[%s] does not match items sum[%s]", o.Subtotal, subtotal)
	}

	total, err := sumMoney(o.Subtotal, o.ShippingCost, o.Tax)
	if err != nil {
		return fmt.Errorf("sumMoney: %w", err)
	}
	if !total.Equal(o.TotalAmount) {
		return fmt.Errorf("totalAmount[%s] does not match subtotal + shipping + tax[%s]", o.TotalAmount, total)
	}

	return nil
}

func (o Order) Clone() Order {
	c := o
	c.Items = make([]OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	if o.TrackingNumber != nil {
		c.TrackingNumber = new(string)
		*c.TrackingNumber = *o.TrackingNumber
	}
	if o.Notes != nil {
		c.Notes = new(string)
		*c.Notes = *o.Notes
	}
	return c
}

// PlaceOrderRequest carries the caller supplied part of a new order.
type PlaceOrderRequest struct {
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   string
	PaymentStatus   *PaymentStatus
	IdempotencyKey  string
}

// Normalize applies defaults and validates the request.
func (r PlaceOrderRequest) Normalize() (PlaceOrderRequest, error) {
	var err error

	if r.ShippingAddress, err = r.ShippingAddress.Normalize(); err != nil {
		return r, fmt.Errorf("shippingAddress: %w", err)
	}
	if r.BillingAddress, err = r.BillingAddress.Normalize(); err != nil {
		return r, fmt.Errorf("billingAddress: %w", err)
	}

	if r.PaymentMethod == "" {
		r.PaymentMethod = DefaultPaymentMethod
	}

	if r.PaymentStatus != nil {
		if _, err := ToPaymentStatus(string(*r.PaymentStatus)); err != nil {
			return r, fmt.Errorf("paymentStatus: %w", err)
		}
	}

	if len(r.IdempotencyKey) > 255 {
		return r, fmt.Errorf("idempotency key is too long: %w", ErrInvalidInput)
	}

	return r, nil
}

// StatusUpdate is an admin change of an order. Nil fields are left untouched.
type StatusUpdate struct {
	OrderStatus    *OrderStatus
	PaymentStatus  *PaymentStatus
	TrackingNumber *string
	Notes          *string
}

func (u StatusUpdate) Validate() error {
	if u.OrderStatus == nil && u.PaymentStatus == nil && u.TrackingNumber == nil && u.Notes == nil {
		return fmt.Errorf("status update has no fields: %w", ErrInvalidInput)
	}

	if u.OrderStatus != nil {
		if _, err := ToOrderStatus(string(*u.OrderStatus)); err != nil {
			return fmt.Errorf("orderStatus: %w", err)
		}
	}

	if u.PaymentStatus != nil {
		if _, err := ToPaymentStatus(string(*u.PaymentStatus)); err != nil {
			return fmt.Errorf("paymentStatus: %w", err)
		}
	}

	return nil
}

// Apply returns a copy of the order with the update applied at now.
// Setting the current status again keeps the status and delivery estimate.
func (u StatusUpdate) Apply(o Order, now time.Time) (Order, error) {
	next := o.Clone()

	if u.OrderStatus != nil && *u.OrderStatus != o.Status {
		if !o.Status.CanTransitionTo(*u.OrderStatus) {
			return o, fmt.Errorf("%s -> %s: %w", o.Status, *u.OrderStatus, ErrInvalidStateTransition)
		}

		next.Status = *u.OrderStatus
		if next.Status == OrderStatusShipped {
			next.EstimatedDelivery = now.Add(ShippedDeliveryWindow)
		}
	}

	if u.PaymentStatus != nil {
		next.PaymentStatus = *u.PaymentStatus
	}
	if u.TrackingNumber != nil {
		next.TrackingNumber = u.TrackingNumber
	}
	if u.Notes != nil {
		next.Notes = u.Notes
	}

	next.UpdatedAt = now

	return next, nil
}

// Cancel returns a copy of the order in the Cancelled status.
func (o Order) Cancel(now time.Time) (Order, error) {
	if o.Status != OrderStatusProcessing {
		return o, fmt.Errorf("cancel order in status %s: %w", o.Status, ErrInvalidStateTransition)
	}

	next := o.Clone()
	next.Status = OrderStatusCancelled
	next.UpdatedAt = now

	return next, nil
}
