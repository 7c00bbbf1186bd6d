package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/candlebot/internal/application/ledger"
	"github.com/alejandrodnm/candlebot/internal/application/strategy"
	"github.com/alejandrodnm/candlebot/internal/domain"
)

// task es una simulación de un bot contra un ticker.
type task struct {
	bot     strategy.Strategy
	ticker  string
	market  market
	batch   *Batch
	account string
}

// failed construye el resultado de una tarea que no terminó.
func (t task) failed(err error) domain.SimulationResult {
	return domain.SimulationResult{
		Bot:            t.bot.Name(),
		Ticker:         t.ticker,
		Interval:       t.batch.Interval,
		InitialBalance: t.batch.InitialBalance,
		Error:          t.describe(err).Error(),
	}
}

// describe garantiza que el mensaje lleve el bot y el ticker.
func (t task) describe(err error) error {
	switch err.(type) {
	case *domain.DecisionError:
		return err
	case *domain.DataUnavailableError:
		return &domain.DecisionError{Bot: t.bot.Name(), Ticker: t.ticker, Stage: domain.StageData, Err: err}
	}
	return &domain.DecisionError{Bot: t.bot.Name(), Ticker: t.ticker, Stage: domain.StageReport, Err: err}
}

func (t task) stageErr(stage string, err error) error {
	return &domain.DecisionError{Bot: t.bot.Name(), Ticker: t.ticker, Stage: stage, Err: err}
}

// run reproduce el intervalo minuto a minuto: siembra el balance en from y en
// cada tick decide y ejecuta, aplica el aporte programado y registra las velas
// observadas, hasta pasar de to.
func (t task) run(ctx context.Context) (domain.SimulationResult, error) {
	b := t.batch
	inst := t.market.instrument
	series := t.market.series

	l := ledger.New(ledger.Config{CommissionRate: b.CommissionRate, Start: b.Interval.From})
	l.RegisterInstrument(inst, series)
	l.SetCurrentBalance(t.account, b.InitialBalance)

	decide := b.Decide
	if decide == nil {
		decide = domain.Always
	}
	cache := t.bot.InitCache()
	observed := newCandleRecorder(series)

	for now := l.NextMinute(); !now.After(b.Interval.To); now = l.NextMinute() {
		if err := ctx.Err(); err != nil {
			return domain.SimulationResult{}, t.stageErr(domain.StageTimeout, err)
		}

		if decide(now) {
			if err := t.step(l, cache, now); err != nil {
				return domain.SimulationResult{}, err
			}
		}
		if b.Deposit != nil && b.Deposit.When(now) {
			l.AddInvestment(t.account, b.Deposit.Amount)
		}
		observed.observe(now)
	}

	return t.summarize(l, observed.candles), nil
}

// step consulta a la estrategia y ejecuta la orden resultante.
func (t task) step(l *ledger.Ledger, cache strategy.Cache, now time.Time) error {
	inst := t.market.instrument
	data := strategy.DecisionData{
		Candles:        t.market.series.Window(now, t.bot.Warmup()),
		Balance:        l.CurrentBalance(t.account, inst.Currency),
		Operations:     l.RecentOperations(t.account, t.batch.HistoryLimit),
		Instrument:     inst,
		CommissionRate: t.batch.CommissionRate,
	}
	if pos, ok := l.Position(t.account, inst.Ticker); ok {
		data.Position = &pos
	}

	decision, err := t.bot.Decide(data, cache)
	if err != nil {
		return t.stageErr(domain.StageDecide, err)
	}

	switch decision.Action {
	case domain.ActionWait:
		return nil
	case domain.ActionBuy:
		err = t.place(l, domain.DirectionBuy, decision)
	case domain.ActionSell:
		err = t.place(l, domain.DirectionSell, decision)
	default:
		err = fmt.Errorf("unknown action %q", decision.Action)
	}
	if err != nil {
		return t.stageErr(domain.StageExecute, fmt.Errorf("%s at %s: %w", decision, now.Format(time.RFC3339), err))
	}
	return nil
}

// place envía la decisión como orden límite si trae precio, si no a mercado.
func (t task) place(l *ledger.Ledger, direction domain.Direction, decision domain.Decision) error {
	ticker := t.market.instrument.Ticker
	var err error
	if decision.IsLimit() {
		_, err = l.PlaceLimitOrder(t.account, ticker, direction, decision.Lots, decision.Limit)
	} else {
		_, err = l.PlaceMarketOrder(t.account, ticker, direction, decision.Lots)
	}
	return err
}

func (t task) summarize(l *ledger.Ledger, candles []domain.Candle) domain.SimulationResult {
	b := t.batch
	currency := b.InitialBalance.Currency
	return Summarize(SummaryInput{
		Bot:            t.bot.Name(),
		Ticker:         t.ticker,
		Interval:       b.Interval,
		InitialBalance: b.InitialBalance,
		Investments:    l.InvestmentHistory(t.account, currency),
		FinalCash:      l.CurrentBalance(t.account, currency),
		Positions:      l.PositionsAt(t.account, b.Interval.To),
		Operations:     l.Operations(t.account),
		Candles:        candles,
	})
}

// candleRecorder guarda cada vela la primera vez que se vuelve conocida.
type candleRecorder struct {
	series  *domain.CandleSeries
	candles []domain.Candle
}

func newCandleRecorder(series *domain.CandleSeries) *candleRecorder {
	return &candleRecorder{series: series}
}

func (r *candleRecorder) observe(now time.Time) {
	c, ok := r.series.LastKnown(now)
	if !ok {
		return
	}
	if n := len(r.candles); n > 0 && !c.Time.After(r.candles[n-1].Time) {
		return
	}
	r.candles = append(r.candles, c)
}
