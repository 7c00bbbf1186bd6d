package ledger_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/candlebot/internal/application/ledger"
	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acc = "sandbox"

var start = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rub(s string) domain.Money { return domain.NewMoney("RUB", d(s)) }

func makeCandle(offset int, low, close, high string) domain.Candle {
	return domain.Candle{
		Open:        d(close),
		Close:       d(close),
		High:        d(high),
		Low:         d(low),
		Time:        start.Add(time.Duration(offset) * time.Minute),
		Granularity: domain.Granularity1Min,
	}
}

func newLedger(t *testing.T, rate string, closes ...string) *ledger.Ledger {
	t.Helper()
	var candles []domain.Candle
	for i, c := range closes {
		candles = append(candles, makeCandle(i, c, c, c))
	}
	l := ledger.New(ledger.Config{CommissionRate: d(rate), Start: start})
	l.RegisterInstrument(domain.Instrument{Ticker: "SBER", Currency: "RUB", LotSize: 10, MinPriceIncrement: d("0.01")},
		domain.NewCandleSeries("SBER", candles))
	return l
}

// balanceInvariant comprueba balance = seed + Σ historial + Σ cash flows.
func balanceInvariant(t *testing.T, l *ledger.Ledger, seed decimal.Decimal) {
	t.Helper()
	want := seed.Add(l.TotalInvested(acc, "RUB"))
	for _, op := range l.Operations(acc) {
		want = want.Add(op.CashFlow())
	}
	assert.True(t, want.Equal(l.CurrentBalance(acc, "RUB")),
		"balance %s, expected %s", l.CurrentBalance(acc, "RUB"), want)
}

func TestClock_NextMinute(t *testing.T) {
	l := ledger.New(ledger.Config{Start: start})

	assert.Equal(t, start.Add(time.Minute), l.NextMinute())
	assert.Equal(t, start.Add(time.Minute), l.Now())
	assert.Equal(t, start.Add(2*time.Minute), l.NextMinute())
}

func TestLedger_SetCurrentBalanceCreatesNoHistory(t *testing.T) {
	l := ledger.New(ledger.Config{Start: start})
	l.SetCurrentBalance(acc, rub("10000"))

	assert.Equal(t, "10000", l.CurrentBalance(acc, "RUB").String())
	assert.Empty(t, l.InvestmentHistory(acc, "RUB"))

	l.SetCurrentBalance(acc, rub("5"))
	assert.Equal(t, "5", l.CurrentBalance(acc, "RUB").String())
}

func TestLedger_AddInvestmentMergesSameTimestamp(t *testing.T) {
	l := ledger.New(ledger.Config{Start: start})
	l.SetCurrentBalance(acc, rub("100"))

	l.AddInvestment(acc, rub("1000"))
	l.AddInvestment(acc, rub("500"))
	l.NextMinute()
	l.AddInvestment(acc, rub("1"))

	history := l.InvestmentHistory(acc, "RUB")
	require.Len(t, history, 2)
	assert.Equal(t, start, history[0].Time)
	assert.Equal(t, "1500", history[0].Amount.String())
	assert.Equal(t, "1", history[1].Amount.String())
	assert.Equal(t, "1601", l.CurrentBalance(acc, "RUB").String())
}

func TestLedger_AddInvestmentAtExplicitTime(t *testing.T) {
	l := ledger.New(ledger.Config{Start: start})
	at := start.Add(time.Hour)

	l.AddInvestmentAt(acc, at, rub("10"))
	l.AddInvestmentAt(acc, at.In(time.FixedZone("MSK", 3*3600)), rub("5"))

	history := l.InvestmentHistory(acc, "RUB")
	require.Len(t, history, 1, "same instant in another zone merges")
	assert.Equal(t, "15", history[0].Amount.String())
}

func TestLedger_MarketOrderBuyAndSell(t *testing.T) {
	l := newLedger(t, "0.003", "100", "110", "120")
	l.SetCurrentBalance(acc, rub("10000"))

	_, err := l.PlaceMarketOrder(acc, "SBER", domain.DirectionBuy, 1)
	require.ErrorIs(t, err, ledger.ErrNoPrice, "no candle closed at start")

	l.NextMinute()
	buy, err := l.PlaceMarketOrder(acc, "SBER", domain.DirectionBuy, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(20), buy.Quantity)
	assert.Equal(t, "100", buy.Price.String())
	assert.Equal(t, "6", buy.Commission.String())
	assert.Equal(t, "7994", l.CurrentBalance(acc, "RUB").String())

	l.NextMinute()
	l.NextMinute()
	pos, ok := l.Position(acc, "SBER")
	require.True(t, ok)
	assert.Equal(t, "100", pos.AveragePrice.String())
	assert.Equal(t, "120", pos.CurrentPrice.String())
	assert.Equal(t, "400", pos.ExpectedYield.String())

	sell, err := l.PlaceMarketOrder(acc, "SBER", domain.DirectionSell, 2)
	require.NoError(t, err)
	assert.Equal(t, "7.2", sell.Commission.String())
	assert.Equal(t, "10386.8", l.CurrentBalance(acc, "RUB").String())

	_, ok = l.Position(acc, "SBER")
	assert.False(t, ok, "closed position is removed")
	assert.Len(t, l.Operations(acc), 2)
	balanceInvariant(t, l, d("10000"))
}

func TestLedger_CommissionRoundedToScale(t *testing.T) {
	l := newLedger(t, "0.0000000003", "1")
	l.NextMinute()

	op, err := l.PlaceMarketOrder(acc, "SBER", domain.DirectionBuy, 1)
	require.NoError(t, err)
	// 10 × 0.0000000003 = 0.000000003
	assert.Equal(t, "0.000000003", op.Commission.String())
}

func TestLedger_OverdraftIsNotBlocked(t *testing.T) {
	l := newLedger(t, "0", "100")
	l.SetCurrentBalance(acc, rub("10"))
	l.NextMinute()

	_, err := l.PlaceMarketOrder(acc, "SBER", domain.DirectionBuy, 1)
	require.NoError(t, err)
	assert.Equal(t, "-990", l.CurrentBalance(acc, "RUB").String())
}

func TestLedger_SellWithoutPosition(t *testing.T) {
	l := newLedger(t, "0", "100")
	l.NextMinute()

	_, err := l.PlaceMarketOrder(acc, "SBER", domain.DirectionSell, 1)
	assert.ErrorIs(t, err, ledger.ErrInsufficientPosition)

	_, err = l.PlaceMarketOrder(acc, "GAZP", domain.DirectionBuy, 1)
	assert.ErrorIs(t, err, ledger.ErrUnknownInstrument)

	_, err = l.PlaceMarketOrder(acc, "SBER", domain.DirectionBuy, 0)
	assert.ErrorIs(t, err, ledger.ErrInvalidLots)
}

func TestLedger_DuplicateOperationRejected(t *testing.T) {
	l := newLedger(t, "0", "100")
	l.SetCurrentBalance(acc, rub("10000"))
	l.NextMinute()

	_, err := l.PlaceMarketOrder(acc, "SBER", domain.DirectionBuy, 1)
	require.NoError(t, err)
	_, err = l.PlaceMarketOrder(acc, "SBER", domain.DirectionBuy, 1)
	assert.ErrorIs(t, err, ledger.ErrDuplicateOperation)

	assert.Len(t, l.Operations(acc), 1)
	balanceInvariant(t, l, d("10000"))
}

func TestLedger_LimitOrderFillsWhenReached(t *testing.T) {
	l := ledger.New(ledger.Config{CommissionRate: d("0"), Start: start})
	l.RegisterInstrument(domain.Instrument{Ticker: "SBER", Currency: "RUB", LotSize: 1},
		domain.NewCandleSeries("SBER", []domain.Candle{
			makeCandle(0, "99", "100", "101"),
			makeCandle(1, "94", "96", "97"),
		}))
	l.SetCurrentBalance(acc, rub("1000"))
	l.NextMinute()

	op, err := l.PlaceLimitOrder(acc, "SBER", domain.DirectionBuy, 2, d("95"))
	require.NoError(t, err)
	assert.Equal(t, domain.OperationInProgress, op.State)
	assert.True(t, domain.HasInProgress(l.Operations(acc)))
	assert.Equal(t, "1000", l.CurrentBalance(acc, "RUB").String())

	l.NextMinute()

	ops := l.Operations(acc)
	require.Len(t, ops, 1)
	assert.Equal(t, domain.OperationExecuted, ops[0].State)
	assert.Equal(t, "95", ops[0].Price.String())
	assert.Equal(t, start.Add(2*time.Minute), ops[0].Time)
	assert.Equal(t, "810", l.CurrentBalance(acc, "RUB").String())
	balanceInvariant(t, l, d("1000"))
}

func TestLedger_LimitOrderImmediateOrPending(t *testing.T) {
	l := ledger.New(ledger.Config{CommissionRate: d("0"), Start: start})
	l.RegisterInstrument(domain.Instrument{Ticker: "SBER", Currency: "RUB", LotSize: 1},
		domain.NewCandleSeries("SBER", []domain.Candle{makeCandle(0, "99", "100", "101")}))
	l.SetCurrentBalance(acc, rub("1000"))
	l.NextMinute()

	op, err := l.PlaceLimitOrder(acc, "SBER", domain.DirectionBuy, 1, d("100.5"))
	require.NoError(t, err)
	assert.Equal(t, domain.OperationExecuted, op.State)

	_, err = l.PlaceLimitOrder(acc, "SBER", domain.DirectionSell, 2, d("150"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientPosition)

	op, err = l.PlaceLimitOrder(acc, "SBER", domain.DirectionSell, 1, d("150"))
	require.NoError(t, err)
	assert.Equal(t, domain.OperationInProgress, op.State)
	assert.True(t, domain.HasInProgress(l.Operations(acc)))

	// Un segundo SELL no puede comprometer el lote que ya espera venderse.
	_, err = l.PlaceLimitOrder(acc, "SBER", domain.DirectionSell, 1, d("150"))
	assert.ErrorIs(t, err, ledger.ErrInsufficientPosition)
}

func TestLedger_InvariantAcrossMixedActivity(t *testing.T) {
	l := newLedger(t, "0.001", "100", "105", "98", "120", "130")
	seed := d("50000")
	l.SetCurrentBalance(acc, domain.Money{Currency: "RUB", Amount: seed})

	steps := []struct {
		dir  domain.Direction
		lots int64
	}{
		{domain.DirectionBuy, 3},
		{domain.DirectionBuy, 1},
		{domain.DirectionSell, 2},
		{domain.DirectionSell, 2},
	}
	for _, s := range steps {
		l.NextMinute()
		l.AddInvestment(acc, rub("250"))
		_, err := l.PlaceMarketOrder(acc, "SBER", s.dir, s.lots)
		require.NoError(t, err)
		balanceInvariant(t, l, seed)
	}
	assert.Empty(t, l.Positions(acc))
}
