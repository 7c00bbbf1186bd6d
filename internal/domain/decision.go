package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionWait Action = "WAIT"
)

// Decision is a strategy's verdict for one decision point. Lots is zero for
// WAIT. A zero Limit means a market order.
type Decision struct {
	Action Action
	Lots   int64
	Limit  decimal.Decimal
}

func Wait() Decision {
	return Decision{Action: ActionWait}
}

// Buy is a market buy of lots.
func Buy(lots int64) Decision {
	return Decision{Action: ActionBuy, Lots: lots}
}

// Sell is a market sell of lots.
func Sell(lots int64) Decision {
	return Decision{Action: ActionSell, Lots: lots}
}

// BuyLimit buys lots only at price or lower.
func BuyLimit(lots int64, price decimal.Decimal) Decision {
	return Decision{Action: ActionBuy, Lots: lots, Limit: price}
}

// SellLimit sells lots only at price or higher.
func SellLimit(lots int64, price decimal.Decimal) Decision {
	return Decision{Action: ActionSell, Lots: lots, Limit: price}
}

// IsLimit reports whether the decision carries a limit price.
func (d Decision) IsLimit() bool {
	return d.Limit.IsPositive()
}

func (d Decision) String() string {
	if d.Action == ActionWait {
		return string(d.Action)
	}
	if d.IsLimit() {
		return fmt.Sprintf("%s %d @ %s", d.Action, d.Lots, d.Limit)
	}
	return fmt.Sprintf("%s %d", d.Action, d.Lots)
}
