package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Granularity is the time bucket a candle summarizes.
type Granularity string

const (
	Granularity1Min  Granularity = "1min"
	Granularity5Min  Granularity = "5min"
	Granularity15Min Granularity = "15min"
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ParseGranularity validates a granularity name.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case Granularity1Min, Granularity5Min, Granularity15Min, GranularityHour,
		GranularityDay, GranularityWeek, GranularityMonth:
		return g, nil
	}
	return "", &ConfigurationError{Field: "granularity", Reason: fmt.Sprintf("unknown value %q", s)}
}

// IsIntraday reports whether candles of this granularity are fetched in daily chunks.
func (g Granularity) IsIntraday() bool {
	switch g {
	case Granularity1Min, Granularity5Min, Granularity15Min, GranularityHour:
		return true
	}
	return false
}

// Next returns the start of the bucket following the one starting at t.
func (g Granularity) Next(t time.Time) time.Time {
	switch g {
	case Granularity1Min:
		return t.Add(time.Minute)
	case Granularity5Min:
		return t.Add(5 * time.Minute)
	case Granularity15Min:
		return t.Add(15 * time.Minute)
	case GranularityHour:
		return t.Add(time.Hour)
	case GranularityDay:
		return t.AddDate(0, 0, 1)
	case GranularityWeek:
		return t.AddDate(0, 0, 7)
	case GranularityMonth:
		return t.AddDate(0, 1, 0)
	}
	return t
}

// ChunkStart returns the start of the widest span that can be requested in a
// single provider call ending at end. Intraday data is served one day at a
// time, everything else one year at a time.
func (g Granularity) ChunkStart(end time.Time) time.Time {
	if g.IsIntraday() {
		return end.AddDate(0, 0, -1)
	}
	return end.AddDate(-1, 0, 0)
}

// Candle is an immutable OHLC summary of one time bucket.
type Candle struct {
	Open        decimal.Decimal
	Close       decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Time        time.Time // bucket start
	Granularity Granularity
}

// CloseTime is the instant the candle's close price becomes known.
func (c Candle) CloseTime() time.Time {
	return c.Granularity.Next(c.Time)
}

// SortCandles sorts ascending by time and drops repeated timestamps, keeping
// the first occurrence. The input slice is not modified.
func SortCandles(candles []Candle) []Candle {
	out := make([]Candle, len(candles))
	copy(out, candles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	n := 0
	for i, c := range out {
		if i > 0 && c.Time.Equal(out[n-1].Time) {
			continue
		}
		out[n] = c
		n++
	}
	return out[:n]
}

// CandleSeries is a read-only, time-ascending candle sequence for one ticker.
// It is shared between concurrent simulations and must never be mutated.
type CandleSeries struct {
	ticker  string
	candles []Candle
}

// NewCandleSeries sorts and deduplicates a copy of candles.
func NewCandleSeries(ticker string, candles []Candle) *CandleSeries {
	return &CandleSeries{ticker: ticker, candles: SortCandles(candles)}
}

func (s *CandleSeries) Ticker() string { return s.ticker }

func (s *CandleSeries) Len() int { return len(s.candles) }

// Candles returns a copy of the full series.
func (s *CandleSeries) Candles() []Candle {
	out := make([]Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// known returns how many candles have closed at or before at.
func (s *CandleSeries) known(at time.Time) int {
	return sort.Search(len(s.candles), func(i int) bool {
		return s.candles[i].CloseTime().After(at)
	})
}

// LastKnown returns the latest candle whose close is known at the given time.
func (s *CandleSeries) LastKnown(at time.Time) (Candle, bool) {
	n := s.known(at)
	if n == 0 {
		return Candle{}, false
	}
	return s.candles[n-1], true
}

// Window returns up to n most recent candles known at the given time, oldest
// first. n <= 0 returns every known candle. The result shares the series'
// backing array and must be treated as read-only.
func (s *CandleSeries) Window(at time.Time, n int) []Candle {
	end := s.known(at)
	start := 0
	if n > 0 && end > n {
		start = end - n
	}
	return s.candles[start:end:end]
}
