package domain

import (
	"errors"
	"fmt"
)

// ErrInstrumentNotFound is returned by instrument providers for unknown tickers.
var ErrInstrumentNotFound = errors.New("instrument not found")

// ConfigurationError is a bad construction parameter. It stops a batch before
// any work is scheduled.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// DataUnavailableError means the candles or the instrument of a ticker could
// not be obtained. It fails only the tasks of that ticker.
type DataUnavailableError struct {
	Ticker string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("data unavailable for %s: %v", e.Ticker, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// Stages of a simulation task a DecisionError can come from.
const (
	StageData    = "data"
	StageDecide  = "decide"
	StageExecute = "execute"
	StageReport  = "report"
	StagePanic   = "panic"
	StageTimeout = "timeout"
)

// DecisionError is a failure inside one (bot, ticker) simulation.
type DecisionError struct {
	Bot    string
	Ticker string
	Stage  string
	Err    error
}

func (e *DecisionError) Error() string {
	return fmt.Sprintf("bot %q on %s failed at %s: %v", e.Bot, e.Ticker, e.Stage, e.Err)
}

func (e *DecisionError) Unwrap() error { return e.Err }

// ReportingError is a failed best-effort export. It is logged and dropped.
type ReportingError struct {
	Ticker string
	Err    error
}

func (e *ReportingError) Error() string {
	return fmt.Sprintf("export report for %s: %v", e.Ticker, e.Err)
}

func (e *ReportingError) Unwrap() error { return e.Err }
