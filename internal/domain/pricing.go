package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// PricingPolicy holds the checkout pricing constants.
type PricingPolicy struct {
	Currency              currency.Unit
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	TaxRate               decimal.Decimal
}

// DefaultPricingPolicy matches the storefront defaults: free shipping from 1000 INR, otherwise 100, 18% tax.
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		Currency:              currency.INR,
		FreeShippingThreshold: decimal.NewFromInt(1000),
		ShippingFee:           decimal.NewFromInt(100),
		TaxRate:               decimal.RequireFromString("0.18"),
	}
}

func (p PricingPolicy) Validate() error {
	if p.Currency == (currency.Unit{}) {
		return fmt.Errorf("currency is empty: %w", ErrInvalidInput)
	}
	if p.FreeShippingThreshold.IsNegative() {
		return fmt.Errorf("free shipping threshold is negative: %w", ErrInvalidInput)
	}
	if p.ShippingFee.IsNegative() {
		return fmt.Errorf("shipping fee is negative: %w", ErrInvalidInput)
	}
	if p.TaxRate.IsNegative() || p.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("tax rate[%s] out of range [0, 1]: %w", p.TaxRate, ErrInvalidInput)
	}
	return nil
}

type Totals struct {
	Subtotal     Money
	ShippingCost Money
	Tax          Money
	Total        Money
}

// Price computes order totals from lines whose unit prices are already resolved.
// Shipping is free when the subtotal meets the threshold. Tax is rounded to the currency minor unit.
func (p PricingPolicy) Price(items []OrderItem) (Totals, error) {
	var t Totals

	if len(items) == 0 {
		return t, ErrEmptyCart
	}

	subtotal := ZeroMoney(p.Currency)
	for _, item := range items {
		if err := ValidateQuantity(item.Quantity); err != nil {
			return t, fmt.Errorf("item[%s]: %w", item.ProductID, err)
		}
		if item.UnitPrice.Amount.IsNegative() {
			return t, fmt.Errorf("item[%s] has negative price: %w", item.ProductID, ErrInvalidInput)
		}

		var err error
		subtotal, err = subtotal.Add(item.LineTotal())
		if err != nil {
			return t, fmt.Errorf("item[%s]: %w", item.ProductID, err)
		}
	}

	shipping := NewMoney(p.ShippingFee, p.Currency)
	if subtotal.Amount.GreaterThanOrEqual(p.FreeShippingThreshold) {
		shipping = ZeroMoney(p.Currency)
	}

	tax := NewMoney(subtotal.Amount.Mul(p.TaxRate), p.Currency)

	total, err := sumMoney(subtotal, shipping, tax)
	if err != nil {
		return t, fmt.Errorf("sumMoney: %w", err)
	}

	return Totals{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		Total:        total,
	}, nil
}

func sumMoney(first Money, rest ...Money) (Money, error) {
	sum := first
	for _, m := range rest {
		var err error
		if sum, err = sum.Add(m); err != nil {
			return Money{}, err
		}
	}
	return sum, nil
}
