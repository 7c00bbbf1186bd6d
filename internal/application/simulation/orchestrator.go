package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/candlebot/internal/application/strategy"
	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/alejandrodnm/candlebot/internal/ports"
	"github.com/shopspring/decimal"
)

// MinThreads es el mínimo de workers: con uno solo no hay simulaciones solapadas.
const MinThreads = 2

// DefaultAccount es la cuenta simulada que usa cada tarea.
const DefaultAccount = "backtest"

// CandleSource es lo que el orquestador necesita del agregador de velas.
type CandleSource interface {
	Validate(iv domain.Interval) error
	GetCandles(ctx context.Context, ticker string, iv domain.Interval, g domain.Granularity) ([]domain.Candle, error)
}

// Config controla el pool de simulaciones.
type Config struct {
	Threads     int           // workers concurrentes, al menos MinThreads
	TaskTimeout time.Duration // 0 = sin deadline por tarea
	Account     string
}

// Deposit es un aporte periódico al balance.
type Deposit struct {
	Amount domain.Money
	When   domain.Predicate
}

// Batch describe un lote de simulaciones: cada bot contra cada ticker.
type Batch struct {
	Tickers        []string
	Bots           []strategy.Strategy
	Interval       domain.Interval
	Granularity    domain.Granularity
	InitialBalance domain.Money
	Deposit        *Deposit         // nil = sin aportes
	Decide         domain.Predicate // nil = decidir en cada tick
	CommissionRate decimal.Decimal
	HistoryLimit   int  // operaciones recientes que ve la estrategia; 0 = todas
	Export         bool // exportar el informe por ticker si hay exporter
}

func (b Batch) validate() error {
	if len(b.Tickers) == 0 {
		return &domain.ConfigurationError{Field: "simulation.tickers", Reason: "at least one ticker is required"}
	}
	if len(b.Bots) == 0 {
		return &domain.ConfigurationError{Field: "bots", Reason: "at least one bot is required"}
	}
	if _, err := domain.ParseGranularity(string(b.Granularity)); err != nil {
		return err
	}
	if b.InitialBalance.Currency == "" {
		return &domain.ConfigurationError{Field: "simulation.initial_balance.currency", Reason: "is required"}
	}
	if b.InitialBalance.Amount.IsNegative() {
		return &domain.ConfigurationError{Field: "simulation.initial_balance.amount", Reason: "must not be negative"}
	}
	if b.CommissionRate.IsNegative() {
		return &domain.ConfigurationError{Field: "simulation.commission_rate", Reason: "must not be negative"}
	}
	if b.Deposit != nil && b.Deposit.When == nil {
		return &domain.ConfigurationError{Field: "simulation.deposit.schedule", Reason: "is required"}
	}
	return b.Interval.Validate()
}

// Orchestrator ejecuta lotes de simulaciones en un pool acotado.
type Orchestrator struct {
	cfg         Config
	candles     CandleSource
	instruments ports.InstrumentProvider
	exporter    ports.ReportExporter // puede ser nil
}

// New valida la configuración. Threads <= 1 es un error de configuración.
func New(cfg Config, candles CandleSource, instruments ports.InstrumentProvider, exporter ports.ReportExporter) (*Orchestrator, error) {
	if cfg.Threads < MinThreads {
		return nil, &domain.ConfigurationError{
			Field:  "simulation.threads",
			Reason: fmt.Sprintf("must be at least %d, got %d", MinThreads, cfg.Threads),
		}
	}
	if cfg.TaskTimeout < 0 {
		return nil, &domain.ConfigurationError{Field: "simulation.task_timeout", Reason: "must not be negative"}
	}
	if cfg.Account == "" {
		cfg.Account = DefaultAccount
	}
	return &Orchestrator{cfg: cfg, candles: candles, instruments: instruments, exporter: exporter}, nil
}

// market son los datos compartidos (sólo lectura) de un ticker durante el batch.
type market struct {
	series     *domain.CandleSeries
	instrument domain.Instrument
	err        error
}

// Run simula cada bot contra cada ticker. Sólo devuelve error por configuración
// inválida; los fallos de una tarea quedan en el Error de su resultado. Los
// resultados salen en orden ticker × bot.
func (o *Orchestrator) Run(ctx context.Context, b Batch) ([]domain.SimulationResult, error) {
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("simulation.Run: %w", err)
	}
	if err := o.candles.Validate(b.Interval); err != nil {
		return nil, fmt.Errorf("simulation.Run: %w", err)
	}

	started := time.Now()
	slog.Info("simulation batch starting",
		"tickers", len(b.Tickers),
		"bots", len(b.Bots),
		"interval", b.Interval,
		"granularity", b.Granularity,
		"threads", o.cfg.Threads,
	)

	// Las velas se bajan una vez por ticker antes de arrancar el pool.
	markets := make(map[string]market, len(b.Tickers))
	for _, ticker := range b.Tickers {
		if _, ok := markets[ticker]; ok {
			continue
		}
		markets[ticker] = o.loadMarket(ctx, ticker, b)
	}

	tasks := make([]task, 0, len(b.Tickers)*len(b.Bots))
	for _, ticker := range b.Tickers {
		for _, bot := range b.Bots {
			tasks = append(tasks, task{
				bot:     bot,
				ticker:  ticker,
				market:  markets[ticker],
				batch:   &b,
				account: o.cfg.Account,
			})
		}
	}

	results := o.runPool(ctx, tasks)

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	slog.Info("simulation batch finished",
		"tasks", len(results),
		"failed", failed,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	if b.Export && o.exporter != nil {
		o.export(ctx, b.Tickers, results)
	}
	return results, nil
}

func (o *Orchestrator) loadMarket(ctx context.Context, ticker string, b Batch) market {
	instrument, err := o.instruments.FindInstrument(ctx, ticker)
	if err != nil {
		slog.Warn("instrument unavailable", "ticker", ticker, "err", err)
		return market{err: &domain.DataUnavailableError{Ticker: ticker, Err: err}}
	}
	switch instrument.Currency {
	case "":
		instrument.Currency = b.InitialBalance.Currency
	case b.InitialBalance.Currency:
	default:
		return market{err: &domain.DataUnavailableError{
			Ticker: ticker,
			Err:    fmt.Errorf("instrument trades in %s, balance is in %s", instrument.Currency, b.InitialBalance.Currency),
		}}
	}
	if instrument.LotSize <= 0 {
		instrument.LotSize = 1
	}

	candles, err := o.candles.GetCandles(ctx, ticker, b.Interval, b.Granularity)
	if err != nil {
		slog.Warn("candles unavailable", "ticker", ticker, "err", err)
		return market{err: &domain.DataUnavailableError{Ticker: ticker, Err: err}}
	}
	if len(candles) == 0 {
		return market{err: &domain.DataUnavailableError{Ticker: ticker, Err: errors.New("no candles in interval")}}
	}
	return market{series: domain.NewCandleSeries(ticker, candles), instrument: instrument}
}

// export guarda el informe de cada ticker. Es best-effort: los errores se loguean.
func (o *Orchestrator) export(ctx context.Context, tickers []string, results []domain.SimulationResult) {
	byTicker := make(map[string][]domain.SimulationResult, len(tickers))
	for _, r := range results {
		byTicker[r.Ticker] = append(byTicker[r.Ticker], r)
	}
	for _, ticker := range tickers {
		rs, ok := byTicker[ticker]
		if !ok {
			continue
		}
		delete(byTicker, ticker)
		if err := o.exporter.Export(ctx, ticker, rs); err != nil {
			slog.Warn("report export failed", "err", &domain.ReportingError{Ticker: ticker, Err: err})
			continue
		}
		slog.Debug("report exported", "ticker", ticker, "results", len(rs))
	}
}
