package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// NewMoney rounds amount to the standard minor unit of the currency, i.e. 2 places for INR.
func NewMoney(amount decimal.Decimal, cur currency.Unit) Money {
	return Money{Amount: RoundToCurrency(amount, cur), Currency: cur}
}

func ZeroMoney(cur currency.Unit) Money {
	return Money{Amount: decimal.Zero, Currency: cur}
}

func RoundToCurrency(amount decimal.Decimal, cur currency.Unit) decimal.Decimal {
	scale, _ := currency.Standard.Rounding(cur)
	return amount.Round(int32(scale))
}

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s != %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

func (m Money) Mul(quantity int) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(quantity))), Currency: m.Currency}
}

func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) String() string {
	return m.Currency.String() + " " + m.Amount.StringFixed(currencyScale(m.Currency))
}

func currencyScale(cur currency.Unit) int32 {
	scale, _ := currency.Standard.Rounding(cur)
	return int32(scale)
}
