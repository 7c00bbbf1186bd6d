package strategy

import (
	"fmt"
	"sort"
	"time"

	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/shopspring/decimal"
)

// Averaging es el conjunto cerrado de medias móviles soportadas: Simple,
// Linear y Exponential. Los métodos no exportados impiden otras implementaciones.
type Averaging interface {
	averages(candles []domain.Candle, ema *emaState) (fast, slow decimal.Decimal, ok bool)
	warmup() int
	validate() error
	label() string
}

// Simple usa medias aritméticas de Small y Big velas.
type Simple struct {
	Small int
	Big   int
}

// Linear usa medias ponderadas linealmente de Small y Big velas.
type Linear struct {
	Small int
	Big   int
}

// Exponential usa medias exponenciales con pesos distintos para la rápida y la lenta.
type Exponential struct {
	SmallDecay decimal.Decimal
	BigDecay   decimal.Decimal
}

func validateWindows(small, big int) error {
	if small < 1 {
		return &domain.ConfigurationError{Field: "bot.small_window", Reason: fmt.Sprintf("must be at least 1, got %d", small)}
	}
	if big <= small {
		return &domain.ConfigurationError{Field: "bot.big_window", Reason: fmt.Sprintf("must be greater than small_window %d, got %d", small, big)}
	}
	return nil
}

func (a Simple) validate() error {
	return validateWindows(a.Small, a.Big)
}

func (a Simple) warmup() int {
	return a.Big
}

func (a Simple) label() string {
	return fmt.Sprintf("sma-%d-%d", a.Small, a.Big)
}

func (a Simple) averages(candles []domain.Candle, _ *emaState) (decimal.Decimal, decimal.Decimal, bool) {
	closes := closesOf(candles)
	fast, ok := SimpleMovingAverage(closes, a.Small)
	if !ok {
		return decimal.Zero, decimal.Zero, false
	}
	slow, ok := SimpleMovingAverage(closes, a.Big)
	return fast, slow, ok
}

func (a Linear) validate() error {
	return validateWindows(a.Small, a.Big)
}

func (a Linear) warmup() int {
	return a.Big
}

func (a Linear) label() string {
	return fmt.Sprintf("lwma-%d-%d", a.Small, a.Big)
}

func (a Linear) averages(candles []domain.Candle, _ *emaState) (decimal.Decimal, decimal.Decimal, bool) {
	closes := closesOf(candles)
	fast, ok := LinearWeightedAverage(closes, a.Small)
	if !ok {
		return decimal.Zero, decimal.Zero, false
	}
	slow, ok := LinearWeightedAverage(closes, a.Big)
	return fast, slow, ok
}

func validateDecay(field string, decay decimal.Decimal) error {
	if !decay.IsPositive() || decay.GreaterThan(decimal.NewFromInt(1)) {
		return &domain.ConfigurationError{Field: field, Reason: fmt.Sprintf("must be in (0, 1], got %s", decay)}
	}
	return nil
}

func (a Exponential) validate() error {
	if err := validateDecay("bot.small_decay", a.SmallDecay); err != nil {
		return err
	}
	return validateDecay("bot.big_decay", a.BigDecay)
}

// La ventana completa: el estado en cache sólo incorpora velas nuevas.
func (a Exponential) warmup() int {
	return 0
}

func (a Exponential) label() string {
	return fmt.Sprintf("ewma-%s-%s", a.SmallDecay, a.BigDecay)
}

// emaState mantiene las medias exponenciales entre puntos de decisión.
type emaState struct {
	seeded bool
	last   time.Time // última vela incorporada
	fast   decimal.Decimal
	slow   decimal.Decimal
}

// averages busca por bisección la primera vela posterior a la última
// incorporada, así cada punto de decisión cuesta O(log n) más las velas nuevas.
func (a Exponential) averages(candles []domain.Candle, ema *emaState) (decimal.Decimal, decimal.Decimal, bool) {
	start := 0
	if ema.seeded {
		start = sort.Search(len(candles), func(i int) bool { return candles[i].Time.After(ema.last) })
	}
	for _, c := range candles[start:] {
		if !ema.seeded {
			// La primera vela siembra ambas medias.
			ema.fast, ema.slow = c.Close, c.Close
			ema.seeded = true
		} else {
			ema.fast = ExponentialStep(ema.fast, c.Close, a.SmallDecay)
			ema.slow = ExponentialStep(ema.slow, c.Close, a.BigDecay)
		}
		ema.last = c.Time
	}
	return ema.fast, ema.slow, ema.seeded
}
