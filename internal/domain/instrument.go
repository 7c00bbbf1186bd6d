package domain

import "github.com/shopspring/decimal"

// Instrument is the trading metadata of a ticker.
type Instrument struct {
	Ticker            string
	FIGI              string
	Name              string
	Currency          string
	LotSize           int64 // base units per lot
	MinPriceIncrement decimal.Decimal
}

// RoundPrice snaps price down to the instrument's tick size.
func (i Instrument) RoundPrice(price decimal.Decimal) decimal.Decimal {
	if i.MinPriceIncrement.IsPositive() {
		return price.Div(i.MinPriceIncrement).Floor().Mul(i.MinPriceIncrement)
	}
	return price
}
