package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvestmentEntry is one cash delta in an account's investment history.
type InvestmentEntry struct {
	Time   time.Time
	Amount decimal.Decimal
}

// SimulationResult is the outcome of replaying one bot against one ticker.
// Error is empty on success; otherwise the numeric fields are zero.
type SimulationResult struct {
	Bot      string
	Ticker   string
	Interval Interval

	InitialBalance            Money
	TotalInvestment           decimal.Decimal
	FinalCashBalance          decimal.Decimal
	FinalTotalBalance         decimal.Decimal
	WeightedAverageInvestment decimal.Decimal
	AbsoluteProfit            decimal.Decimal
	RelativeProfit            decimal.Decimal
	RelativeYearProfit        decimal.Decimal

	Investments []InvestmentEntry
	Positions   []Position
	Operations  []Operation
	Candles     []Candle

	Error string
}

func (r SimulationResult) Failed() bool { return r.Error != "" }
