package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/candlebot/internal/domain"
)

// MarketDataProvider sirve velas históricas de un broker o de un fixture.
type MarketDataProvider interface {
	// FetchCandles devuelve las velas con timestamp en [from, to).
	// El rango no puede superar el span máximo por request de la granularidad
	// (un día intradía, un año para day/week/month).
	FetchCandles(ctx context.Context, ticker string, from, to time.Time, g domain.Granularity) ([]domain.Candle, error)

	// Now es la hora actual según el proveedor; no se pueden pedir datos posteriores.
	Now() time.Time
}

// InstrumentProvider resuelve la metadata de trading de un ticker.
type InstrumentProvider interface {
	// FindInstrument devuelve domain.ErrInstrumentNotFound (envuelto) si el ticker no existe.
	FindInstrument(ctx context.Context, ticker string) (domain.Instrument, error)
}
