package storage

// sqlite.go — informe de backtesting por ticker.
//
// Cada Export crea un `run` (uuid) con una fila en `results` por bot y sus
// operaciones en `operations`. Los importes se guardan como TEXT para no
// perder precisión decimal. Al abrir se borran los runs de más de 90 días.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    ticker      TEXT    NOT NULL,
    exported_at TEXT    NOT NULL,
    results     INTEGER NOT NULL DEFAULT 0
);

-- Una fila por bot del run
CREATE TABLE IF NOT EXISTS results (
    run_id               TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    bot                  TEXT NOT NULL,
    ticker               TEXT NOT NULL,
    from_ts              TEXT NOT NULL,
    to_ts                TEXT NOT NULL,
    currency             TEXT NOT NULL,
    initial_balance      TEXT NOT NULL,
    total_investment     TEXT NOT NULL,
    final_cash           TEXT NOT NULL,
    final_total          TEXT NOT NULL,
    weighted_investment  TEXT NOT NULL,
    absolute_profit      TEXT NOT NULL,
    relative_profit      TEXT NOT NULL,
    relative_year_profit TEXT NOT NULL,
    error                TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, bot)
);

CREATE TABLE IF NOT EXISTS operations (
    run_id      TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    bot         TEXT    NOT NULL,
    seq         INTEGER NOT NULL,
    ticker      TEXT    NOT NULL,
    executed_at TEXT    NOT NULL,
    direction   TEXT    NOT NULL,
    price       TEXT    NOT NULL,
    lots        INTEGER NOT NULL,
    quantity    INTEGER NOT NULL,
    commission  TEXT    NOT NULL,
    state       TEXT    NOT NULL,
    PRIMARY KEY (run_id, bot, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_ticker ON runs(ticker, exported_at DESC);
`

const retentionRuns = 90 * 24 * time.Hour

// ErrNoRuns indica que un ticker no tiene informes guardados.
var ErrNoRuns = errors.New("no runs for ticker")

// Run es un informe exportado.
type Run struct {
	ID         string
	Ticker     string
	ExportedAt time.Time
	Results    []domain.SimulationResult
}

// SQLiteStorage implementa ports.ReportExporter usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada, aplica el
// schema y limpia runs antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db, now: func() time.Time { return time.Now().UTC() }}
	s.pruneOld(context.Background())
	return s, nil
}

// Export guarda todos los resultados de un ticker como un run nuevo.
func (s *SQLiteStorage) Export(ctx context.Context, ticker string, results []domain.SimulationResult) error {
	if len(results) == 0 {
		return nil
	}
	runID := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.Export: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, ticker, exported_at, results) VALUES (?, ?, ?, ?)`,
		runID, ticker, formatTime(s.now()), len(results),
	); err != nil {
		return fmt.Errorf("storage.Export: insert run: %w", err)
	}

	resStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results (
			run_id, bot, ticker, from_ts, to_ts, currency, initial_balance,
			total_investment, final_cash, final_total, weighted_investment,
			absolute_profit, relative_profit, relative_year_profit, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.Export: prepare results: %w", err)
	}
	defer resStmt.Close()

	opStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO operations (
			run_id, bot, seq, ticker, executed_at, direction, price, lots, quantity, commission, state
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.Export: prepare operations: %w", err)
	}
	defer opStmt.Close()

	for _, r := range results {
		if _, err := resStmt.ExecContext(ctx,
			runID, r.Bot, r.Ticker,
			formatTime(r.Interval.From), formatTime(r.Interval.To),
			r.InitialBalance.Currency, r.InitialBalance.Amount.String(),
			r.TotalInvestment.String(), r.FinalCashBalance.String(), r.FinalTotalBalance.String(),
			r.WeightedAverageInvestment.String(), r.AbsoluteProfit.String(),
			r.RelativeProfit.String(), r.RelativeYearProfit.String(), r.Error,
		); err != nil {
			return fmt.Errorf("storage.Export: insert result %s: %w", r.Bot, err)
		}
		for i, op := range r.Operations {
			if _, err := opStmt.ExecContext(ctx,
				runID, r.Bot, i, op.Ticker, formatTime(op.Time), string(op.Direction),
				op.Price.String(), op.Lots, op.Quantity, op.Commission.String(), string(op.State),
			); err != nil {
				return fmt.Errorf("storage.Export: insert operation %s #%d: %w", r.Bot, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.Export: commit: %w", err)
	}
	return nil
}

// LatestRun devuelve el último informe exportado de un ticker, con sus
// resultados ordenados por bot.
func (s *SQLiteStorage) LatestRun(ctx context.Context, ticker string) (Run, error) {
	var (
		run        Run
		exportedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, ticker, exported_at FROM runs WHERE ticker = ? ORDER BY exported_at DESC LIMIT 1`,
		ticker,
	).Scan(&run.ID, &run.Ticker, &exportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("storage.LatestRun %s: %w", ticker, ErrNoRuns)
	}
	if err != nil {
		return Run{}, fmt.Errorf("storage.LatestRun: query run: %w", err)
	}
	run.ExportedAt, _ = time.Parse(time.RFC3339Nano, exportedAt)

	results, err := s.loadResults(ctx, run.ID)
	if err != nil {
		return Run{}, err
	}
	ops, err := s.loadOperations(ctx, run.ID)
	if err != nil {
		return Run{}, err
	}
	for i := range results {
		results[i].Operations = ops[results[i].Bot]
	}
	run.Results = results
	return run, nil
}

func (s *SQLiteStorage) loadResults(ctx context.Context, runID string) ([]domain.SimulationResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bot, ticker, from_ts, to_ts, currency, initial_balance, total_investment,
		       final_cash, final_total, weighted_investment, absolute_profit,
		       relative_profit, relative_year_profit, error
		FROM results WHERE run_id = ? ORDER BY bot`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage.LatestRun: query results: %w", err)
	}
	defer rows.Close()

	var out []domain.SimulationResult
	for rows.Next() {
		var (
			r        domain.SimulationResult
			from, to string
		)
		if err := rows.Scan(
			&r.Bot, &r.Ticker, &from, &to, &r.InitialBalance.Currency, &r.InitialBalance.Amount,
			&r.TotalInvestment, &r.FinalCashBalance, &r.FinalTotalBalance,
			&r.WeightedAverageInvestment, &r.AbsoluteProfit,
			&r.RelativeProfit, &r.RelativeYearProfit, &r.Error,
		); err != nil {
			return nil, fmt.Errorf("storage.LatestRun: scan result: %w", err)
		}
		r.Interval.From, _ = time.Parse(time.RFC3339Nano, from)
		r.Interval.To, _ = time.Parse(time.RFC3339Nano, to)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadOperations(ctx context.Context, runID string) (map[string][]domain.Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bot, ticker, executed_at, direction, price, lots, quantity, commission, state
		FROM operations WHERE run_id = ? ORDER BY bot, seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage.LatestRun: query operations: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Operation)
	for rows.Next() {
		var (
			bot, at, direction, state string
			op                        domain.Operation
			price, commission         decimal.Decimal
		)
		if err := rows.Scan(&bot, &op.Ticker, &at, &direction, &price, &op.Lots, &op.Quantity, &commission, &state); err != nil {
			return nil, fmt.Errorf("storage.LatestRun: scan operation: %w", err)
		}
		op.Time, _ = time.Parse(time.RFC3339Nano, at)
		op.Direction = domain.Direction(direction)
		op.State = domain.OperationState(state)
		op.Price, op.Commission = price, commission
		out[bot] = append(out[bot], op)
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos limpiamente.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld borra runs fuera de la retención; results y operations caen en cascada.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := formatTime(s.now().Add(-retentionRuns))
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE exported_at < ?`, cutoff)
	if err != nil {
		slog.Warn("prune old runs failed", "err", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Debug("pruned old runs", "count", n)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
