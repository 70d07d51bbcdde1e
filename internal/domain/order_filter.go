package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
	maxSearchLength  = 200
)

// OrderFilter has AND semantics across fields, OR semantics within each field slice.
// An empty filter matches every order.
type OrderFilter struct {
	OwnerIDs        []string
	Statuses        []OrderStatus
	PaymentStatuses []PaymentStatus
	// Search is a case-insensitive substring of the order id, shipping full name or shipping email.
	Search    string
	CreatedAt *TimeRange
}

func (f OrderFilter) Validate() error {
	for _, status := range f.Statuses {
		if _, err := ToOrderStatus(string(status)); err != nil {
			return fmt.Errorf("statuses: %w", err)
		}
	}

	for _, status := range f.PaymentStatuses {
		if _, err := ToPaymentStatus(string(status)); err != nil {
			return fmt.Errorf("paymentStatuses: %w", err)
		}
	}

	if len(strings.TrimSpace(f.Search)) > maxSearchLength {
		return fmt.Errorf("search is longer than %d: %w", maxSearchLength, ErrInvalidInput)
	}

	if f.CreatedAt != nil {
		if err := f.CreatedAt.Validate(); err != nil {
			return fmt.Errorf("createdAt: %w", err)
		}
	}

	return nil
}

// TimeRange is inclusive on both ends.
type TimeRange struct {
	Before *time.Time
	After  *time.Time
}

func (t TimeRange) Validate() error {
	if t.Before == nil && t.After == nil {
		return fmt.Errorf("both Before and After are nil: %w", ErrInvalidInput)
	}

	if t.Before != nil && t.After != nil {
		if t.Before.Before(*t.After) {
			return fmt.Errorf("Before is earlier than After: %w", ErrInvalidInput)
		}
	}

	return nil
}

type Page struct {
	Number int
	Limit  int
}

// NewPage applies defaults: page 1, limit 20. Limit is capped at 100 and the offset must fit an int32.
func NewPage(number, limit int) (Page, error) {
	if number == 0 {
		number = 1
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}

	if number < 1 {
		return Page{}, fmt.Errorf("page[%d] must be positive: %w", number, ErrInvalidInput)
	}
	if limit < 1 || limit > MaxPageLimit {
		return Page{}, fmt.Errorf("limit[%d] out of range [1, %d]: %w", limit, MaxPageLimit, ErrInvalidInput)
	}
	if number-1 > math.MaxInt32/limit {
		return Page{}, fmt.Errorf("page[%d] is too large for limit[%d]: %w", number, limit, ErrInvalidInput)
	}

	return Page{Number: number, Limit: limit}, nil
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

type OrderPage struct {
	Orders []Order
	Total  int
	Page   Page
}

func (p OrderPage) TotalPages() int {
	if p.Page.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Page.Limit - 1) / p.Page.Limit
}

func (p OrderPage) HasNext() bool {
	return p.Page.Number < p.TotalPages()
}

func (p OrderPage) HasPrev() bool {
	return p.Page.Number > 1
}
