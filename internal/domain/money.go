package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits every amount is kept at.
const MoneyScale int32 = 9

// Round rounds d half away from zero to MoneyScale digits.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// Div divides a by b rounding to MoneyScale digits. b must not be zero.
func Div(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, MoneyScale)
}

// Money is an amount in a single currency.
type Money struct {
	Currency string
	Amount   decimal.Decimal
}

// NewMoney builds a Money rounded to MoneyScale.
func NewMoney(currency string, amount decimal.Decimal) Money {
	return Money{Currency: currency, Amount: Round(amount)}
}

// Add returns m + delta in the same currency.
func (m Money) Add(delta decimal.Decimal) Money {
	return Money{Currency: m.Currency, Amount: Round(m.Amount.Add(delta))}
}

func (m Money) IsZero() bool { return m.Amount.IsZero() }

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}
