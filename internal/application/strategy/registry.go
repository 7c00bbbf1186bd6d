package strategy

import (
	"fmt"
	"sort"

	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/shopspring/decimal"
)

// Kinds de media móvil aceptados en la configuración.
const (
	KindSimple      = "simple"
	KindLinear      = "linear"
	KindExponential = "exponential"
)

// Spec es la descripción declarativa de un bot.
type Spec struct {
	Name        string
	Kind        string
	SmallWindow int
	BigWindow   int
	SmallDecay  decimal.Decimal
	BigDecay    decimal.Decimal
	Order       int
	MinProfit   decimal.Decimal
	Greedy      bool
	LimitOffset decimal.Decimal
}

// FromSpec construye la estrategia de cruce que describe spec.
func FromSpec(spec Spec) (Strategy, error) {
	var averaging Averaging
	switch spec.Kind {
	case KindSimple:
		averaging = Simple{Small: spec.SmallWindow, Big: spec.BigWindow}
	case KindLinear:
		averaging = Linear{Small: spec.SmallWindow, Big: spec.BigWindow}
	case KindExponential:
		averaging = Exponential{SmallDecay: spec.SmallDecay, BigDecay: spec.BigDecay}
	default:
		return nil, &domain.ConfigurationError{Field: "bot.kind", Reason: fmt.Sprintf("unknown kind %q", spec.Kind)}
	}
	return NewCrossover(spec.Name, averaging, Params{
		Order:       spec.Order,
		MinProfit:   spec.MinProfit,
		Greedy:      spec.Greedy,
		LimitOffset: spec.LimitOffset,
	})
}

// Registry mantiene los bots del batch indexados por nombre.
type Registry map[string]Strategy

// NewRegistry crea un registry vacío.
func NewRegistry() Registry {
	return make(Registry)
}

// Register añade una estrategia; los nombres duplicados son un error de configuración.
func (r Registry) Register(s Strategy) error {
	if _, dup := r[s.Name()]; dup {
		return &domain.ConfigurationError{Field: "bots", Reason: fmt.Sprintf("duplicate bot name %q", s.Name())}
	}
	r[s.Name()] = s
	return nil
}

// Get devuelve la estrategia por nombre.
func (r Registry) Get(name string) (Strategy, bool) {
	s, ok := r[name]
	return s, ok
}

// All devuelve las estrategias ordenadas por nombre.
func (r Registry) All() []Strategy {
	out := make([]Strategy, 0, len(r))
	for _, s := range r {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Load construye y registra todos los bots de specs.
func Load(specs []Spec) (Registry, error) {
	r := NewRegistry()
	for i, spec := range specs {
		s, err := FromSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("strategy.Load: bot %d: %w", i, err)
		}
		if err := r.Register(s); err != nil {
			return nil, fmt.Errorf("strategy.Load: %w", err)
		}
	}
	return r, nil
}
