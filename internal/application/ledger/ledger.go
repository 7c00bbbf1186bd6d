package ledger

// ledger.go — broker simulado (FakeBroker) para backtesting.
//
// Cada cuenta guarda, por moneda, el balance actual y el historial de inversiones;
// además posiciones por ticker, el journal de operaciones y órdenes límite
// pendientes. Los precios salen de la última vela cerrada según el reloj
// simulado, nunca de una vela futura.
//
// Invariante: balance = seed + Σ historial + Σ cash flow de operaciones ejecutadas.

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownInstrument    = errors.New("unknown instrument")
	ErrNoPrice              = errors.New("no candle closed yet")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrInvalidLots          = errors.New("lots must be positive")
	ErrDuplicateOperation   = errors.New("duplicate operation")
)

// Config parametriza un Ledger.
type Config struct {
	CommissionRate decimal.Decimal // fracción de price×qty, p.ej. 0.0005
	Start          time.Time       // hora inicial del reloj simulado
}

// market agrupa la metadata y las velas de un instrumento registrado.
type market struct {
	instrument domain.Instrument
	series     *domain.CandleSeries
}

// pendingOrder es una orden límite que todavía no tocó su precio.
type pendingOrder struct {
	op domain.Operation
}

type account struct {
	balances  map[string]decimal.Decimal
	history   map[string]map[time.Time]decimal.Decimal
	positions map[string]*domain.Position
	journal   []domain.Operation
	seen      map[string]struct{}
	pending   []pendingOrder
}

func newAccount() *account {
	return &account{
		balances:  make(map[string]decimal.Decimal),
		history:   make(map[string]map[time.Time]decimal.Decimal),
		positions: make(map[string]*domain.Position),
		seen:      make(map[string]struct{}),
	}
}

// Ledger es el broker simulado. No es seguro para uso concurrente: cada
// simulación crea el suyo.
type Ledger struct {
	clock    *Clock
	rate     decimal.Decimal
	accounts map[string]*account
	markets  map[string]market
}

// New crea un Ledger vacío con su propio reloj.
func New(cfg Config) *Ledger {
	return &Ledger{
		clock:    NewClock(cfg.Start),
		rate:     cfg.CommissionRate,
		accounts: make(map[string]*account),
		markets:  make(map[string]market),
	}
}

// Now devuelve la hora simulada.
func (l *Ledger) Now() time.Time { return l.clock.Now() }

// NextMinute avanza el reloj un minuto e intenta ejecutar las órdenes límite
// pendientes contra la vela recién cerrada.
func (l *Ledger) NextMinute() time.Time {
	now := l.clock.NextMinute()
	for _, acc := range l.accounts {
		if len(acc.pending) > 0 {
			l.settlePending(acc, now)
		}
	}
	return now
}

// RegisterInstrument habilita el trading de un ticker con sus velas como fuente de precios.
func (l *Ledger) RegisterInstrument(instrument domain.Instrument, series *domain.CandleSeries) {
	l.markets[instrument.Ticker] = market{instrument: instrument, series: series}
}

func (l *Ledger) account(id string) *account {
	acc, ok := l.accounts[id]
	if !ok {
		acc = newAccount()
		l.accounts[id] = acc
	}
	return acc
}

// SetCurrentBalance sobreescribe el balance sin dejar entrada en el historial.
// Sólo se usa para sembrar el balance inicial.
func (l *Ledger) SetCurrentBalance(accountID string, m domain.Money) {
	l.account(accountID).balances[m.Currency] = domain.Round(m.Amount)
}

// AddInvestment registra un aporte a la hora simulada actual.
func (l *Ledger) AddInvestment(accountID string, m domain.Money) {
	l.AddInvestmentAt(accountID, l.clock.Now(), m)
}

// AddInvestmentAt suma el aporte al balance y al historial. Si ya hay una
// entrada en ese instante se suman, nunca se reemplaza.
func (l *Ledger) AddInvestmentAt(accountID string, at time.Time, m domain.Money) {
	acc := l.account(accountID)
	amount := domain.Round(m.Amount)
	acc.balances[m.Currency] = acc.balances[m.Currency].Add(amount)

	entries, ok := acc.history[m.Currency]
	if !ok {
		entries = make(map[time.Time]decimal.Decimal)
		acc.history[m.Currency] = entries
	}
	key := at.UTC()
	entries[key] = entries[key].Add(amount)
}

// CurrentBalance devuelve el efectivo disponible en una moneda.
func (l *Ledger) CurrentBalance(accountID, currency string) decimal.Decimal {
	return l.account(accountID).balances[currency]
}

// InvestmentHistory devuelve el historial de aportes ordenado por tiempo.
func (l *Ledger) InvestmentHistory(accountID, currency string) []domain.InvestmentEntry {
	entries := l.account(accountID).history[currency]
	out := make([]domain.InvestmentEntry, 0, len(entries))
	for at, amount := range entries {
		out = append(out, domain.InvestmentEntry{Time: at, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// TotalInvested suma el historial de aportes de una moneda.
func (l *Ledger) TotalInvested(accountID, currency string) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range l.account(accountID).history[currency] {
		total = total.Add(amount)
	}
	return total
}

// LastPrice es el cierre de la última vela conocida a la hora simulada.
func (l *Ledger) LastPrice(ticker string) (decimal.Decimal, error) {
	c, err := l.lastCandle(ticker, l.clock.Now())
	if err != nil {
		return decimal.Zero, err
	}
	return c.Close, nil
}

func (l *Ledger) lastCandle(ticker string, at time.Time) (domain.Candle, error) {
	m, ok := l.markets[ticker]
	if !ok {
		return domain.Candle{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, ticker)
	}
	c, ok := m.series.LastKnown(at)
	if !ok {
		return domain.Candle{}, fmt.Errorf("%w: %s at %s", ErrNoPrice, ticker, at.Format(time.RFC3339))
	}
	return c, nil
}

// PlaceMarketOrder ejecuta al cierre de la última vela conocida.
// El ledger no comprueba el saldo: evitar el descubierto es cosa del llamador.
func (l *Ledger) PlaceMarketOrder(accountID, ticker string, direction domain.Direction, lots int64) (domain.Operation, error) {
	if lots <= 0 {
		return domain.Operation{}, ErrInvalidLots
	}
	m, ok := l.markets[ticker]
	if !ok {
		return domain.Operation{}, fmt.Errorf("ledger.PlaceMarketOrder: %w: %s", ErrUnknownInstrument, ticker)
	}
	c, err := l.lastCandle(ticker, l.clock.Now())
	if err != nil {
		return domain.Operation{}, fmt.Errorf("ledger.PlaceMarketOrder: %w", err)
	}
	op := l.newOperation(m.instrument, direction, lots, c.Close, l.clock.Now())
	if err := l.execute(l.account(accountID), op); err != nil {
		return domain.Operation{}, fmt.Errorf("ledger.PlaceMarketOrder: %w", err)
	}
	return op, nil
}

// PlaceLimitOrder ejecuta al precio límite si el rango [Low, High] de la última
// vela lo alcanza. Si no, la orden queda IN_PROGRESS y se reintenta en cada
// NextMinute hasta que se llene.
func (l *Ledger) PlaceLimitOrder(accountID, ticker string, direction domain.Direction, lots int64, price decimal.Decimal) (domain.Operation, error) {
	if lots <= 0 {
		return domain.Operation{}, ErrInvalidLots
	}
	m, ok := l.markets[ticker]
	if !ok {
		return domain.Operation{}, fmt.Errorf("ledger.PlaceLimitOrder: %w: %s", ErrUnknownInstrument, ticker)
	}
	price = m.instrument.RoundPrice(price)
	acc := l.account(accountID)
	now := l.clock.Now()

	if direction == domain.DirectionSell {
		held := int64(0)
		if p, ok := acc.positions[ticker]; ok {
			held = p.Lots - pendingSellLots(acc, ticker)
		}
		if lots > held {
			return domain.Operation{}, fmt.Errorf("ledger.PlaceLimitOrder: %w: %s", ErrInsufficientPosition, ticker)
		}
	}

	if c, err := l.lastCandle(ticker, now); err == nil && reaches(c, direction, price) {
		op := l.newOperation(m.instrument, direction, lots, price, now)
		if err := l.execute(acc, op); err != nil {
			return domain.Operation{}, fmt.Errorf("ledger.PlaceLimitOrder: %w", err)
		}
		return op, nil
	}

	op := domain.Operation{
		Ticker:    ticker,
		Time:      now,
		Direction: direction,
		Price:     price,
		Lots:      lots,
		Quantity:  lots * m.instrument.LotSize,
		State:     domain.OperationInProgress,
	}
	acc.pending = append(acc.pending, pendingOrder{op: op})
	return op, nil
}

func (l *Ledger) settlePending(acc *account, now time.Time) {
	remaining := acc.pending[:0]
	for _, p := range acc.pending {
		c, err := l.lastCandle(p.op.Ticker, now)
		if err != nil || !reaches(c, p.op.Direction, p.op.Price) {
			remaining = append(remaining, p)
			continue
		}
		op := l.newOperation(l.markets[p.op.Ticker].instrument, p.op.Direction, p.op.Lots, p.op.Price, now)
		if err := l.execute(acc, op); err != nil {
			// La posición cambió desde que se puso la orden; se descarta.
			continue
		}
	}
	acc.pending = remaining
}

func reaches(c domain.Candle, direction domain.Direction, limit decimal.Decimal) bool {
	if direction == domain.DirectionBuy {
		return c.Low.LessThanOrEqual(limit)
	}
	return c.High.GreaterThanOrEqual(limit)
}

func pendingSellLots(acc *account, ticker string) int64 {
	var lots int64
	for _, p := range acc.pending {
		if p.op.Ticker == ticker && p.op.Direction == domain.DirectionSell {
			lots += p.op.Lots
		}
	}
	return lots
}

func (l *Ledger) newOperation(inst domain.Instrument, direction domain.Direction, lots int64, price decimal.Decimal, at time.Time) domain.Operation {
	qty := lots * inst.LotSize
	gross := price.Mul(decimal.NewFromInt(qty))
	return domain.Operation{
		Ticker:     inst.Ticker,
		Time:       at,
		Direction:  direction,
		Price:      price,
		Lots:       lots,
		Quantity:   qty,
		Commission: domain.Round(gross.Mul(l.rate)),
		State:      domain.OperationExecuted,
	}
}

// execute aplica una operación ejecutada a posición, balance y journal.
func (l *Ledger) execute(acc *account, op domain.Operation) error {
	key := op.Key()
	if _, dup := acc.seen[key]; dup {
		return fmt.Errorf("%w: %s %s at %s", ErrDuplicateOperation, op.Direction, op.Ticker, op.Time.Format(time.RFC3339))
	}

	pos, ok := acc.positions[op.Ticker]
	switch op.Direction {
	case domain.DirectionBuy:
		if !ok {
			pos = &domain.Position{Ticker: op.Ticker}
			acc.positions[op.Ticker] = pos
		}
		pos.Buy(op.Lots, op.Quantity, op.Price)
	case domain.DirectionSell:
		if !ok {
			return fmt.Errorf("%w: no position in %s", ErrInsufficientPosition, op.Ticker)
		}
		if err := pos.Sell(op.Lots, op.Quantity, op.Price); err != nil {
			return fmt.Errorf("%w: %v", ErrInsufficientPosition, err)
		}
		if pos.IsEmpty() {
			delete(acc.positions, op.Ticker)
		}
	default:
		return fmt.Errorf("unknown direction %q", op.Direction)
	}

	currency := l.markets[op.Ticker].instrument.Currency
	acc.balances[currency] = acc.balances[currency].Add(op.CashFlow())
	acc.journal = append(acc.journal, op)
	acc.seen[key] = struct{}{}
	return nil
}

// Position devuelve la posición abierta de un ticker valorada a la hora simulada.
func (l *Ledger) Position(accountID, ticker string) (domain.Position, bool) {
	p, ok := l.account(accountID).positions[ticker]
	if !ok {
		return domain.Position{}, false
	}
	out := *p
	if c, err := l.lastCandle(ticker, l.clock.Now()); err == nil {
		out.Mark(c.Close)
	}
	return out, true
}

// Positions devuelve las posiciones abiertas valoradas a la hora simulada.
func (l *Ledger) Positions(accountID string) []domain.Position {
	return l.PositionsAt(accountID, l.clock.Now())
}

// PositionsAt valora las posiciones con la última vela cerrada en at, ordenadas por ticker.
func (l *Ledger) PositionsAt(accountID string, at time.Time) []domain.Position {
	acc := l.account(accountID)
	out := make([]domain.Position, 0, len(acc.positions))
	for ticker, p := range acc.positions {
		pos := *p
		if c, err := l.lastCandle(ticker, at); err == nil {
			pos.Mark(c.Close)
		}
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Operations devuelve el journal seguido de las órdenes pendientes (IN_PROGRESS).
func (l *Ledger) Operations(accountID string) []domain.Operation {
	acc := l.account(accountID)
	out := make([]domain.Operation, 0, len(acc.journal)+len(acc.pending))
	out = append(out, acc.journal...)
	for _, p := range acc.pending {
		out = append(out, p.op)
	}
	return out
}

// RecentOperations devuelve las últimas n operaciones del journal más las pendientes.
func (l *Ledger) RecentOperations(accountID string, n int) []domain.Operation {
	acc := l.account(accountID)
	journal := acc.journal
	if n > 0 && len(journal) > n {
		journal = journal[len(journal)-n:]
	}
	out := make([]domain.Operation, 0, len(journal)+len(acc.pending))
	out = append(out, journal...)
	for _, p := range acc.pending {
		out = append(out, p.op)
	}
	return out
}
