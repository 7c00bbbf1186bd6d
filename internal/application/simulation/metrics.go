package simulation

import (
	"time"

	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/shopspring/decimal"
)

const year = 365 * 24 * time.Hour

// SummaryInput es el estado final de una simulación.
type SummaryInput struct {
	Bot            string
	Ticker         string
	Interval       domain.Interval
	InitialBalance domain.Money
	Investments    []domain.InvestmentEntry // aportes posteriores a la siembra
	FinalCash      decimal.Decimal
	Positions      []domain.Position // valoradas al cierre del intervalo
	Operations     []domain.Operation
	Candles        []domain.Candle
}

// Summarize calcula las métricas normalizadas de una simulación terminada.
func Summarize(in SummaryInput) domain.SimulationResult {
	total := in.InitialBalance.Amount
	for _, e := range in.Investments {
		total = total.Add(e.Amount)
	}

	finalTotal := in.FinalCash
	for _, p := range in.Positions {
		finalTotal = finalTotal.Add(p.Value())
	}
	finalTotal = domain.Round(finalTotal)

	weighted := WeightedAverageInvestment(in.Interval, in.InitialBalance.Amount, in.Investments)
	absolute := finalTotal.Sub(total)
	relative := decimal.Zero
	if !weighted.IsZero() {
		relative = domain.Div(absolute, weighted)
	}

	return domain.SimulationResult{
		Bot:                       in.Bot,
		Ticker:                    in.Ticker,
		Interval:                  in.Interval,
		InitialBalance:            in.InitialBalance,
		TotalInvestment:           domain.Round(total),
		FinalCashBalance:          domain.Round(in.FinalCash),
		FinalTotalBalance:         finalTotal,
		WeightedAverageInvestment: weighted,
		AbsoluteProfit:            domain.Round(absolute),
		RelativeProfit:            relative,
		RelativeYearProfit:        Annualize(relative, in.Interval.Duration()),
		Investments:               in.Investments,
		Positions:                 in.Positions,
		Operations:                in.Operations,
		Candles:                   in.Candles,
	}
}

// WeightedAverageInvestment pondera cada aporte por la fracción del intervalo
// que queda desde que ocurrió: uno en from pesa 1, uno en la mitad pesa 0.5.
// El balance inicial cuenta como aporte en from.
func WeightedAverageInvestment(iv domain.Interval, initial decimal.Decimal, entries []domain.InvestmentEntry) decimal.Decimal {
	total := iv.Duration()
	sum := initial
	for _, e := range entries {
		sum = sum.Add(e.Amount.Mul(weight(iv, total, e.Time)))
	}
	return domain.Round(sum)
}

func weight(iv domain.Interval, total time.Duration, at time.Time) decimal.Decimal {
	if total <= 0 {
		return decimal.NewFromInt(1)
	}
	remaining := iv.To.Sub(at)
	switch {
	case remaining <= 0:
		return decimal.Zero
	case remaining >= total:
		return decimal.NewFromInt(1)
	}
	return domain.Div(decimal.NewFromInt(int64(remaining)), decimal.NewFromInt(int64(total)))
}

// Annualize extrapola un rendimiento relativo lineal a 365 días.
func Annualize(relative decimal.Decimal, d time.Duration) decimal.Decimal {
	if d <= 0 {
		return decimal.Zero
	}
	return domain.Div(relative.Mul(decimal.NewFromInt(int64(year))), decimal.NewFromInt(int64(d)))
}
