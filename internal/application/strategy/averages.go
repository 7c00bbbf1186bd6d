package strategy

import (
	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/shopspring/decimal"
)

// SimpleMovingAverage es la media aritmética de las últimas w velas.
func SimpleMovingAverage(closes []decimal.Decimal, w int) (decimal.Decimal, bool) {
	if w <= 0 || len(closes) < w {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for _, c := range closes[len(closes)-w:] {
		sum = sum.Add(c)
	}
	return domain.Div(sum, decimal.NewFromInt(int64(w))), true
}

// LinearWeightedAverage pondera las últimas w velas con pesos 1..w, de la más
// antigua a la más reciente, normalizados por su suma.
func LinearWeightedAverage(closes []decimal.Decimal, w int) (decimal.Decimal, bool) {
	if w <= 0 || len(closes) < w {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for i, c := range closes[len(closes)-w:] {
		sum = sum.Add(c.Mul(decimal.NewFromInt(int64(i + 1))))
	}
	weights := decimal.NewFromInt(int64(w * (w + 1) / 2))
	return domain.Div(sum, weights), true
}

// ExponentialStep incorpora un cierre nuevo: decay·close + (1−decay)·prev.
func ExponentialStep(prev, close, decay decimal.Decimal) decimal.Decimal {
	return domain.Round(close.Mul(decay).Add(prev.Mul(decimal.NewFromInt(1).Sub(decay))))
}

func closesOf(candles []domain.Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
