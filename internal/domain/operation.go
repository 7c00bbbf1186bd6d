package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

type OperationState string

const (
	OperationExecuted   OperationState = "EXECUTED"
	OperationInProgress OperationState = "IN_PROGRESS"
)

// Operation is one trade in an account journal. Once journaled it never changes.
type Operation struct {
	Ticker     string
	Time       time.Time
	Direction  Direction
	Price      decimal.Decimal
	Lots       int64
	Quantity   int64
	Commission decimal.Decimal
	State      OperationState
}

// Key identifies an operation by all of its fields.
func (o Operation) Key() string {
	return fmt.Sprintf("%s|%d|%s|%s|%d|%d|%s|%s",
		o.Ticker, o.Time.UnixNano(), o.Direction, o.Price.String(),
		o.Lots, o.Quantity, o.Commission.String(), o.State)
}

// Gross is price × quantity.
func (o Operation) Gross() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(o.Quantity))
}

// CashFlow is the signed effect of an executed operation on the cash balance.
// Operations still in progress have not moved any cash.
func (o Operation) CashFlow() decimal.Decimal {
	if o.State != OperationExecuted {
		return decimal.Zero
	}
	if o.Direction == DirectionBuy {
		return o.Gross().Add(o.Commission).Neg()
	}
	return o.Gross().Sub(o.Commission)
}

// HasInProgress reports whether any operation is still unsettled.
func HasInProgress(ops []Operation) bool {
	for _, op := range ops {
		if op.State == OperationInProgress {
			return true
		}
	}
	return false
}
