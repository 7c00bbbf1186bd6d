package strategy

import (
	"errors"
	"fmt"

	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/shopspring/decimal"
)

// Crossover es el lado desde el que la media rápida cruzó a la lenta.
type Crossover int

const (
	CrossNone      Crossover = iota
	CrossFromBelow           // la rápida estaba debajo y ahora está encima
	CrossFromAbove           // la rápida estaba encima y ahora está debajo
)

func (c Crossover) String() string {
	switch c {
	case CrossFromBelow:
		return "BELOW"
	case CrossFromAbove:
		return "ABOVE"
	}
	return "NONE"
}

type side int

const (
	sideEqual side = iota
	sideBelow
	sideAbove
)

func sideOf(fast, slow decimal.Decimal) side {
	switch fast.Cmp(slow) {
	case -1:
		return sideBelow
	case 1:
		return sideAbove
	}
	return sideEqual
}

// DetectCrossover mira el punto index: hay cruce si la rápida está de un lado
// de la lenta en index y estuvo del lado opuesto en los order puntos previos.
func DetectCrossover(fast, slow []decimal.Decimal, index, order int) Crossover {
	if order < 1 || index < order || index >= len(fast) || index >= len(slow) {
		return CrossNone
	}
	current := sideOf(fast[index], slow[index])
	var want side
	switch current {
	case sideAbove:
		want = sideBelow
	case sideBelow:
		want = sideAbove
	default:
		return CrossNone
	}
	for i := index - order; i < index; i++ {
		if sideOf(fast[i], slow[i]) != want {
			return CrossNone
		}
	}
	if current == sideAbove {
		return CrossFromBelow
	}
	return CrossFromAbove
}

// Params son los parámetros comunes de las estrategias de cruce.
type Params struct {
	Order     int             // puntos previos que confirman un cruce
	MinProfit decimal.Decimal // rendimiento relativo mínimo para vender
	Greedy    bool            // reinvertir en vez de esperar si vender no compensa

	// LimitOffset > 0 convierte las órdenes en límite: compra a close×(1−offset),
	// vende a close×(1+offset). La orden queda IN_PROGRESS hasta que se llena.
	LimitOffset decimal.Decimal
}

// CrossoverStrategy compara una media rápida con una lenta en cada punto de decisión.
type CrossoverStrategy struct {
	name      string
	averaging Averaging
	params    Params
}

// NewCrossover valida los parámetros y construye la estrategia.
func NewCrossover(name string, averaging Averaging, params Params) (*CrossoverStrategy, error) {
	if averaging == nil {
		return nil, &domain.ConfigurationError{Field: "bot.kind", Reason: "averaging is required"}
	}
	if err := averaging.validate(); err != nil {
		return nil, err
	}
	if params.Order < 1 {
		return nil, &domain.ConfigurationError{Field: "bot.order", Reason: fmt.Sprintf("must be at least 1, got %d", params.Order)}
	}
	if params.MinProfit.IsNegative() {
		return nil, &domain.ConfigurationError{Field: "bot.min_profit", Reason: "must not be negative"}
	}
	if params.LimitOffset.IsNegative() || params.LimitOffset.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, &domain.ConfigurationError{Field: "bot.limit_offset", Reason: fmt.Sprintf("must be in [0, 1), got %s", params.LimitOffset)}
	}
	if name == "" {
		name = defaultName(averaging, params)
	}
	return &CrossoverStrategy{name: name, averaging: averaging, params: params}, nil
}

func defaultName(a Averaging, p Params) string {
	name := fmt.Sprintf("%s-o%d-p%s", a.label(), p.Order, p.MinProfit.String())
	if p.Greedy {
		name += "-greedy"
	}
	if p.LimitOffset.IsPositive() {
		name += "-l" + p.LimitOffset.String()
	}
	return name
}

func (s *CrossoverStrategy) Name() string { return s.name }

func (s *CrossoverStrategy) Warmup() int { return s.averaging.warmup() }

func (s *CrossoverStrategy) Averaging() Averaging { return s.averaging }

func (s *CrossoverStrategy) Params() Params { return s.params }

// crossoverCache guarda las medias de los últimos puntos de decisión y el
// estado incremental de las medias exponenciales.
type crossoverCache struct {
	fast []decimal.Decimal
	slow []decimal.Decimal
	ema  emaState
}

func (c *crossoverCache) push(fast, slow decimal.Decimal, keep int) {
	c.fast = append(c.fast, fast)
	c.slow = append(c.slow, slow)
	if len(c.fast) > keep {
		c.fast = append(c.fast[:0], c.fast[len(c.fast)-keep:]...)
		c.slow = append(c.slow[:0], c.slow[len(c.slow)-keep:]...)
	}
}

var errForeignCache = errors.New("cache was not created by this strategy")

func (s *CrossoverStrategy) InitCache() Cache {
	return &crossoverCache{}
}

// Decide recalcula ambas medias, las registra como nuevo punto de decisión y
// enruta un cruce confirmado a BuyOrWait o SellOrWait.
func (s *CrossoverStrategy) Decide(data DecisionData, cache Cache) (domain.Decision, error) {
	st, ok := cache.(*crossoverCache)
	if !ok {
		return domain.Decision{}, fmt.Errorf("strategy.Decide %s: %w", s.name, errForeignCache)
	}

	fast, slow, ok := s.averaging.averages(data.Candles, &st.ema)
	if !ok {
		return domain.Wait(), nil
	}
	st.push(fast, slow, s.params.Order+1)

	if domain.HasInProgress(data.Operations) {
		return domain.Wait(), nil
	}

	switch DetectCrossover(st.fast, st.slow, len(st.fast)-1, s.params.Order) {
	case CrossFromBelow:
		return s.withLimit(data, BuyOrWait(data)), nil
	case CrossFromAbove:
		return s.withLimit(data, SellOrWait(data, s.params.MinProfit, s.params.Greedy)), nil
	}
	return domain.Wait(), nil
}

// withLimit pone el precio límite a una orden de mercado si la variante lo pide.
func (s *CrossoverStrategy) withLimit(data DecisionData, dec domain.Decision) domain.Decision {
	if dec.Action == domain.ActionWait || !s.params.LimitOffset.IsPositive() {
		return dec
	}
	price, ok := data.LastClose()
	if !ok {
		return dec
	}
	one := decimal.NewFromInt(1)
	if dec.Action == domain.ActionBuy {
		limit := data.Instrument.RoundPrice(price.Mul(one.Sub(s.params.LimitOffset)))
		return domain.BuyLimit(dec.Lots, limit)
	}
	limit := data.Instrument.RoundPrice(price.Mul(one.Add(s.params.LimitOffset)))
	return domain.SellLimit(dec.Lots, limit)
}
