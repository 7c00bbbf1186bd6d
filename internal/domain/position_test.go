package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPosition_BuyWeightedAverage(t *testing.T) {
	p := Position{Ticker: "SBER"}
	p.Buy(1, 10, d("100"))
	p.Buy(3, 30, d("200"))

	assert.Equal(t, int64(4), p.Lots)
	assert.Equal(t, int64(40), p.Quantity)
	assert.Equal(t, "175", p.AveragePrice.String())
	assert.Equal(t, "200", p.CurrentPrice.String())
	assert.Equal(t, "1000", p.ExpectedYield.String())
}

func TestPosition_SellKeepsAverage(t *testing.T) {
	p := Position{Ticker: "SBER"}
	p.Buy(2, 2, d("100"))

	require.NoError(t, p.Sell(1, 1, d("130")))

	assert.Equal(t, "100", p.AveragePrice.String())
	assert.Equal(t, "30", p.RealizedYield.String())
	assert.Equal(t, int64(1), p.Quantity)
}

func TestPosition_SellMoreThanHeld(t *testing.T) {
	p := Position{Ticker: "SBER"}
	p.Buy(1, 1, d("100"))

	assert.Error(t, p.Sell(2, 2, d("100")))
	assert.Equal(t, int64(1), p.Quantity)
}

func TestPosition_RelativeYield(t *testing.T) {
	p := Position{AveragePrice: d("200"), CurrentPrice: d("250"), Quantity: 1}
	assert.Equal(t, "0.25", p.RelativeYield().String())
	assert.True(t, Position{}.RelativeYield().IsZero())
}

func TestOperation_CashFlow(t *testing.T) {
	buy := Operation{Direction: DirectionBuy, Price: d("10"), Quantity: 3, Commission: d("0.5"), State: OperationExecuted}
	sell := Operation{Direction: DirectionSell, Price: d("10"), Quantity: 3, Commission: d("0.5"), State: OperationExecuted}
	pending := buy
	pending.State = OperationInProgress

	assert.Equal(t, "-30.5", buy.CashFlow().String())
	assert.Equal(t, "29.5", sell.CashFlow().String())
	assert.True(t, pending.CashFlow().IsZero())
	assert.True(t, HasInProgress([]Operation{buy, pending}))
	assert.False(t, HasInProgress([]Operation{buy, sell}))
}

func TestMoney_RoundsToScale(t *testing.T) {
	m := NewMoney("RUB", d("1.0000000005"))
	assert.Equal(t, "1.000000001", m.Amount.String())
	assert.Equal(t, "1.00 RUB", m.String())
}
