package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Position is a long holding of one instrument.
type Position struct {
	Ticker        string
	Lots          int64
	Quantity      int64 // base units, Lots × lot size
	AveragePrice  decimal.Decimal
	CurrentPrice  decimal.Decimal
	ExpectedYield decimal.Decimal // unrealized, (current − average) × quantity
	RealizedYield decimal.Decimal // accumulated on sells
}

// Buy adds to the position and recomputes the quantity-weighted average price.
func (p *Position) Buy(lots, quantity int64, price decimal.Decimal) {
	held := decimal.NewFromInt(p.Quantity)
	added := decimal.NewFromInt(quantity)
	total := held.Add(added)
	if total.IsPositive() {
		p.AveragePrice = Div(p.AveragePrice.Mul(held).Add(price.Mul(added)), total)
	}
	p.Lots += lots
	p.Quantity += quantity
	p.Mark(price)
}

// Sell reduces the position leaving the average price untouched and books the
// realized gain (price − average) × quantity.
func (p *Position) Sell(lots, quantity int64, price decimal.Decimal) error {
	if quantity > p.Quantity || lots > p.Lots {
		return fmt.Errorf("sell %d of %s: only %d held", quantity, p.Ticker, p.Quantity)
	}
	gain := price.Sub(p.AveragePrice).Mul(decimal.NewFromInt(quantity))
	p.RealizedYield = Round(p.RealizedYield.Add(gain))
	p.Lots -= lots
	p.Quantity -= quantity
	p.Mark(price)
	return nil
}

// Mark sets the current price and the unrealized yield.
func (p *Position) Mark(price decimal.Decimal) {
	p.CurrentPrice = price
	p.ExpectedYield = Round(price.Sub(p.AveragePrice).Mul(decimal.NewFromInt(p.Quantity)))
}

// Value is the mark-to-market value of the holding.
func (p Position) Value() decimal.Decimal {
	return p.CurrentPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// RelativeYield is (current − average) / average, zero when the average is unknown.
func (p Position) RelativeYield() decimal.Decimal {
	if p.AveragePrice.IsZero() {
		return decimal.Zero
	}
	return Div(p.CurrentPrice.Sub(p.AveragePrice), p.AveragePrice)
}

func (p Position) IsEmpty() bool { return p.Quantity == 0 }
