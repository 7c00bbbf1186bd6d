package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/candlebot/config"
	"github.com/alejandrodnm/candlebot/internal/adapters/marketdata"
	"github.com/alejandrodnm/candlebot/internal/adapters/notify"
	"github.com/alejandrodnm/candlebot/internal/adapters/storage"
	"github.com/alejandrodnm/candlebot/internal/application/candles"
	"github.com/alejandrodnm/candlebot/internal/application/simulation"
	"github.com/alejandrodnm/candlebot/internal/application/strategy"
	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/alejandrodnm/candlebot/internal/ports"
)

// source es lo que el backtester necesita de un proveedor de mercado.
type source interface {
	ports.MarketDataProvider
	ports.InstrumentProvider
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	offline := flag.String("offline", "", "replay a local JSON fixture instead of calling the API")
	noExport := flag.Bool("no-export", false, "do not write the report to storage")
	detail := flag.Bool("detail", false, "print the operations journal of every bot")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	slog.Info("candlebot starting",
		"config", *configPath,
		"tickers", cfg.Tickers(),
		"bots", len(cfg.Bots),
		"threads", cfg.Simulation.Threads,
		"offline", *offline != "",
	)

	market, err := newSource(cfg, *offline)
	if err != nil {
		slog.Error("failed to set up market data", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, market, cfg.Storage.Export && !*noExport, *detail); err != nil {
		os.Exit(1)
	}
	slog.Info("candlebot stopped cleanly")
}

// run abre el storage, ejecuta el batch e imprime los resultados. Los errores
// ya salen logueados; el valor devuelto sólo decide el exit code.
func run(cfg *config.Config, market source, export, detail bool) error {
	batch, threads, timeout, err := buildBatch(cfg)
	if err != nil {
		slog.Error("invalid config", "err", err)
		return err
	}

	var exporter ports.ReportExporter
	if export {
		store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			return err
		}
		defer store.Close()
		exporter = store
	}
	batch.Export = exporter != nil

	aggregator := candles.New(market, cfg.Simulation.EmptyDaysLimit)
	orch, err := simulation.New(simulation.Config{Threads: threads, TaskTimeout: timeout}, aggregator, market, exporter)
	if err != nil {
		slog.Error("invalid config", "err", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	results, err := orch.Run(ctx, batch)
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			slog.Error("invalid batch", "field", cfgErr.Field, "reason", cfgErr.Reason)
		} else {
			slog.Error("batch failed", "err", err)
		}
		return err
	}

	if err := notify.NewConsole(detail).Notify(ctx, results); err != nil {
		slog.Warn("notifier error", "err", err)
	}

	slog.Info("candlebot finished", "results", len(results))
	return nil
}

func newSource(cfg *config.Config, fixture string) (source, error) {
	if fixture != "" {
		static, err := marketdata.LoadFixture(fixture)
		if err != nil {
			return nil, err
		}
		return static, nil
	}
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return nil, err
	}
	return marketdata.NewClient(cfg.API.BaseURL, cfg.API.Token, timeout), nil
}

// buildBatch traduce la configuración ya validada al lote del orquestador.
func buildBatch(cfg *config.Config) (simulation.Batch, int, time.Duration, error) {
	var b simulation.Batch

	specs, err := cfg.BotSpecs()
	if err != nil {
		return b, 0, 0, err
	}
	registry, err := strategy.Load(specs)
	if err != nil {
		return b, 0, 0, err
	}
	iv, err := cfg.Interval()
	if err != nil {
		return b, 0, 0, err
	}
	g, err := cfg.Granularity()
	if err != nil {
		return b, 0, 0, err
	}
	balance, err := cfg.InitialBalance()
	if err != nil {
		return b, 0, 0, err
	}
	deposit, err := cfg.Deposit()
	if err != nil {
		return b, 0, 0, err
	}
	decide, err := cfg.DecisionSchedule()
	if err != nil {
		return b, 0, 0, err
	}
	rate, err := cfg.CommissionRate()
	if err != nil {
		return b, 0, 0, err
	}
	timeout, err := cfg.TaskTimeout()
	if err != nil {
		return b, 0, 0, err
	}

	b = simulation.Batch{
		Tickers:        cfg.Tickers(),
		Bots:           registry.All(),
		Interval:       iv,
		Granularity:    g,
		InitialBalance: balance,
		Deposit:        deposit,
		Decide:         decide,
		CommissionRate: rate,
		HistoryLimit:   cfg.Simulation.HistoryLimit,
	}
	return b, cfg.Simulation.Threads, timeout, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
