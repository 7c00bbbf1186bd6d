package strategy

import (
	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/shopspring/decimal"
)

// Cache es el estado privado de una estrategia para un par (estrategia, ticker)
// durante una simulación. Sólo la estrategia que lo creó sabe interpretarlo.
type Cache any

// DecisionData agrupa todo lo que una estrategia puede mirar en un punto de decisión.
type DecisionData struct {
	Candles        []domain.Candle    // ventana reciente, la más antigua primero
	Position       *domain.Position   // nil si no hay posición abierta
	Balance        decimal.Decimal    // efectivo en la moneda del instrumento
	Operations     []domain.Operation // historial reciente, incluye pendientes
	Instrument     domain.Instrument
	CommissionRate decimal.Decimal
}

// LastClose devuelve el cierre de la vela más reciente.
func (d DecisionData) LastClose() (decimal.Decimal, bool) {
	if len(d.Candles) == 0 {
		return decimal.Zero, false
	}
	return d.Candles[len(d.Candles)-1].Close, true
}

// Strategy define el contrato de decisión. Decide es una función pura de sus
// argumentos y del cache; no hace I/O.
type Strategy interface {
	// Name devuelve el nombre visible del bot.
	Name() string

	// Warmup es el número de velas que necesita la ventana; 0 significa todas
	// las velas conocidas hasta el momento.
	Warmup() int

	// InitCache crea el estado privado para una simulación.
	InitCache() Cache

	// Decide devuelve BUY, SELL o WAIT para el punto de decisión actual.
	Decide(data DecisionData, cache Cache) (domain.Decision, error)
}

// BuyOrWait compra tantos lotes enteros como permita el balance pagando comisión.
func BuyOrWait(data DecisionData) domain.Decision {
	price, ok := data.LastClose()
	if !ok || !price.IsPositive() || !data.Balance.IsPositive() {
		return domain.Wait()
	}
	lotSize := data.Instrument.LotSize
	if lotSize <= 0 {
		lotSize = 1
	}
	lotCost := price.
		Mul(decimal.NewFromInt(lotSize)).
		Mul(decimal.NewFromInt(1).Add(data.CommissionRate))
	quo, _ := data.Balance.QuoRem(lotCost, 0)
	lots := quo.IntPart()
	// La comisión del ledger se redondea por orden; el coste real puede pasarse.
	for lots > 0 && orderCost(price, lots*lotSize, data.CommissionRate).GreaterThan(data.Balance) {
		lots--
	}
	if lots <= 0 {
		return domain.Wait()
	}
	return domain.Buy(lots)
}

// SellOrWait vende toda la posición si el rendimiento relativo supera minProfit.
// Si no, las variantes greedy intentan comprar más en lugar de esperar.
func SellOrWait(data DecisionData, minProfit decimal.Decimal, greedy bool) domain.Decision {
	if data.Position == nil || data.Position.IsEmpty() {
		return domain.Wait()
	}
	pos := *data.Position
	if price, ok := data.LastClose(); ok {
		pos.Mark(price)
	}
	if pos.RelativeYield().GreaterThan(minProfit) {
		return domain.Sell(pos.Lots)
	}
	if greedy {
		return BuyOrWait(data)
	}
	return domain.Wait()
}

// orderCost es lo que el ledger descuenta por una compra: bruto más comisión redondeada.
func orderCost(price decimal.Decimal, quantity int64, rate decimal.Decimal) decimal.Decimal {
	gross := price.Mul(decimal.NewFromInt(quantity))
	return gross.Add(domain.Round(gross.Mul(rate)))
}
