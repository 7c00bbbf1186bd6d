package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alejandrodnm/candlebot/internal/domain"
)

// Static sirve velas e instrumentos desde memoria. Se usa con --offline y en tests.
// Es de sólo lectura tras construirlo, así que puede compartirse entre goroutines.
type Static struct {
	now         time.Time
	candles     map[string][]domain.Candle
	instruments map[string]domain.Instrument
}

// NewStatic crea un proveedor vacío cuya hora actual es now.
func NewStatic(now time.Time) *Static {
	return &Static{
		now:         now,
		candles:     make(map[string][]domain.Candle),
		instruments: make(map[string]domain.Instrument),
	}
}

// Add registra un instrumento y sus velas.
func (s *Static) Add(inst domain.Instrument, candles []domain.Candle) {
	s.instruments[inst.Ticker] = inst
	s.candles[inst.Ticker] = append(s.candles[inst.Ticker], candles...)
}

// LoadFixture lee un fichero JSON con el mismo formato de velas que la API.
func LoadFixture(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("marketdata.LoadFixture: read %q: %w", path, err)
	}
	var f fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("marketdata.LoadFixture: parse %q: %w", path, err)
	}

	s := NewStatic(f.Now.UTC())
	for _, m := range f.Markets {
		g, err := granularityOf(m.Interval)
		if err != nil {
			return nil, fmt.Errorf("marketdata.LoadFixture: %s: %w", m.Instrument.Ticker, err)
		}
		s.Add(mapInstrument(m.Instrument), mapCandles(m.Candles, g))
	}
	return s, nil
}

func (s *Static) Now() time.Time { return s.now }

func (s *Static) FetchCandles(_ context.Context, ticker string, from, to time.Time, g domain.Granularity) ([]domain.Candle, error) {
	var out []domain.Candle
	for _, c := range s.candles[ticker] {
		if c.Granularity == g && !c.Time.Before(from) && c.Time.Before(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Static) FindInstrument(_ context.Context, ticker string) (domain.Instrument, error) {
	inst, ok := s.instruments[ticker]
	if !ok {
		return domain.Instrument{}, fmt.Errorf("marketdata.FindInstrument %s: %w", ticker, domain.ErrInstrumentNotFound)
	}
	return inst, nil
}
