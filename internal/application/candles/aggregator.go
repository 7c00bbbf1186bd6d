package candles

// aggregator.go — descarga y cose series de velas históricas.
//
// El proveedor limita el rango por request (un día intradía, un año para
// day/week/month), así que se camina hacia atrás desde `to` en trozos de ese
// tamaño. Intradía, una racha de días vacíos más larga que el límite se toma
// como "no hay más historia" (fines de semana y festivos no cortan la serie).

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/alejandrodnm/candlebot/internal/ports"
)

// DefaultEmptyDaysLimit cubre un fin de semana largo con festivos.
const DefaultEmptyDaysLimit = 7

// Aggregator obtiene series de velas de un MarketDataProvider.
type Aggregator struct {
	provider       ports.MarketDataProvider
	emptyDaysLimit int
}

// New crea un Aggregator. emptyDaysLimit <= 0 usa DefaultEmptyDaysLimit.
func New(provider ports.MarketDataProvider, emptyDaysLimit int) *Aggregator {
	if emptyDaysLimit <= 0 {
		emptyDaysLimit = DefaultEmptyDaysLimit
	}
	return &Aggregator{provider: provider, emptyDaysLimit: emptyDaysLimit}
}

// Validate rechaza intervalos mal formados o que terminan después de la hora
// actual del proveedor. No hace ninguna llamada de datos.
func (a *Aggregator) Validate(iv domain.Interval) error {
	if err := iv.Validate(); err != nil {
		return err
	}
	if now := a.provider.Now(); iv.To.After(now) {
		return &domain.ConfigurationError{
			Field:  "interval.to",
			Reason: fmt.Sprintf("%s is after provider time %s", iv.To.Format(time.RFC3339), now.Format(time.RFC3339)),
		}
	}
	return nil
}

// GetCandles devuelve las velas de [from, to] ordenadas ascendentemente y sin
// timestamps repetidos.
func (a *Aggregator) GetCandles(ctx context.Context, ticker string, iv domain.Interval, g domain.Granularity) ([]domain.Candle, error) {
	if err := a.Validate(iv); err != nil {
		return nil, err
	}

	var (
		raw    []domain.Candle
		chunks int
		err    error
	)
	if g.IsIntraday() {
		raw, chunks, err = a.walkDays(ctx, ticker, iv, g)
	} else {
		raw, chunks, err = a.walkYears(ctx, ticker, iv, g)
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.Candle, 0, len(raw))
	for _, c := range domain.SortCandles(raw) {
		if iv.Contains(c.Time) {
			out = append(out, c)
		}
	}

	slog.Debug("candles loaded",
		"ticker", ticker,
		"granularity", g,
		"chunks", chunks,
		"candles", len(out),
	)
	return out, nil
}

// walkDays baja día a día desde to. Se detiene al llegar a from o al superar
// emptyDaysLimit días vacíos consecutivos.
func (a *Aggregator) walkDays(ctx context.Context, ticker string, iv domain.Interval, g domain.Granularity) ([]domain.Candle, int, error) {
	var raw []domain.Candle
	chunks, empty := 0, 0
	end := g.Next(iv.To) // los requests son [start, end)
	for {
		start := g.ChunkStart(end)
		if start.Before(iv.From) {
			start = iv.From
		}
		chunk, err := a.provider.FetchCandles(ctx, ticker, start, end, g)
		if err != nil {
			return nil, chunks, fmt.Errorf("candles.GetCandles: fetch %s %s..%s: %w",
				ticker, start.Format(time.RFC3339), end.Format(time.RFC3339), err)
		}
		chunks++

		if len(chunk) == 0 {
			empty++
			if empty > a.emptyDaysLimit {
				slog.Debug("no more history", "ticker", ticker, "before", end, "empty_days", empty)
				break
			}
		} else {
			empty = 0
			raw = append(raw, chunk...)
		}

		if !start.After(iv.From) {
			break
		}
		end = start
	}
	return raw, chunks, nil
}

// walkYears baja año a año desde to hasta from o hasta una respuesta vacía.
func (a *Aggregator) walkYears(ctx context.Context, ticker string, iv domain.Interval, g domain.Granularity) ([]domain.Candle, int, error) {
	var raw []domain.Candle
	chunks := 0
	end := g.Next(iv.To)
	for {
		start := g.ChunkStart(end)
		if start.Before(iv.From) {
			start = iv.From
		}
		chunk, err := a.provider.FetchCandles(ctx, ticker, start, end, g)
		if err != nil {
			return nil, chunks, fmt.Errorf("candles.GetCandles: fetch %s %s..%s: %w",
				ticker, start.Format(time.RFC3339), end.Format(time.RFC3339), err)
		}
		chunks++
		if len(chunk) == 0 {
			break
		}
		raw = append(raw, chunk...)

		if !start.After(iv.From) {
			break
		}
		end = start
	}
	return raw, chunks, nil
}

// GetLastCandles devuelve las limit velas más recientes, ascendentes. Baja día
// a día desde la hora del proveedor hasta juntar limit velas o encontrar
// emptyDaysLimit días vacíos seguidos.
func (a *Aggregator) GetLastCandles(ctx context.Context, ticker string, limit int, g domain.Granularity) ([]domain.Candle, error) {
	if limit <= 0 {
		return nil, &domain.ConfigurationError{Field: "limit", Reason: fmt.Sprintf("must be positive, got %d", limit)}
	}

	var raw []domain.Candle
	empty := 0
	end := a.provider.Now()
	for len(raw) < limit && empty < a.emptyDaysLimit {
		start := end.AddDate(0, 0, -1)
		chunk, err := a.provider.FetchCandles(ctx, ticker, start, end, g)
		if err != nil {
			return nil, fmt.Errorf("candles.GetLastCandles: fetch %s: %w", ticker, err)
		}
		if len(chunk) == 0 {
			empty++
		} else {
			empty = 0
			raw = append(raw, chunk...)
		}
		end = start
	}

	sorted := domain.SortCandles(raw)
	if len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	return sorted, nil
}

// LoadSeries envuelve GetCandles en una CandleSeries inmutable.
func (a *Aggregator) LoadSeries(ctx context.Context, ticker string, iv domain.Interval, g domain.Granularity) (*domain.CandleSeries, error) {
	candles, err := a.GetCandles(ctx, ticker, iv, g)
	if err != nil {
		return nil, err
	}
	return domain.NewCandleSeries(ticker, candles), nil
}
