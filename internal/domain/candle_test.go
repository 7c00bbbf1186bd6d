package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func minuteCandle(offset int, close int64) Candle {
	c := decimal.NewFromInt(close)
	return Candle{Open: c, Close: c, High: c, Low: c, Time: t0.Add(time.Duration(offset) * time.Minute), Granularity: Granularity1Min}
}

func TestSortCandles_SortsAndDedupes(t *testing.T) {
	in := []Candle{minuteCandle(2, 3), minuteCandle(0, 1), minuteCandle(2, 99), minuteCandle(1, 2)}

	out := SortCandles(in)

	require.Len(t, out, 3)
	for i, c := range out {
		assert.Equal(t, t0.Add(time.Duration(i)*time.Minute), c.Time)
	}
	assert.Equal(t, "3", out[2].Close.String(), "first occurrence wins")
	assert.Equal(t, t0.Add(2*time.Minute), in[0].Time, "input untouched")
}

func TestCandleSeries_LastKnownUsesCloseTime(t *testing.T) {
	s := NewCandleSeries("SBER", []Candle{minuteCandle(0, 100), minuteCandle(1, 200)})

	_, ok := s.LastKnown(t0)
	assert.False(t, ok, "first candle has not closed yet")

	c, ok := s.LastKnown(t0.Add(time.Minute))
	require.True(t, ok)
	assert.Equal(t, "100", c.Close.String())

	c, ok = s.LastKnown(t0.Add(90 * time.Second))
	require.True(t, ok)
	assert.Equal(t, "100", c.Close.String())

	c, ok = s.LastKnown(t0.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, "200", c.Close.String())
}

func TestCandleSeries_Window(t *testing.T) {
	var candles []Candle
	for i := 0; i < 10; i++ {
		candles = append(candles, minuteCandle(i, int64(i)))
	}
	s := NewCandleSeries("SBER", candles)

	w := s.Window(t0.Add(5*time.Minute), 3)
	require.Len(t, w, 3)
	assert.Equal(t, "2", w[0].Close.String())
	assert.Equal(t, "4", w[2].Close.String())

	assert.Len(t, s.Window(t0.Add(5*time.Minute), 0), 5)
	assert.Len(t, s.Window(t0.Add(2*time.Minute), 10), 2)
	assert.Empty(t, s.Window(t0, 3))
}

func TestGranularity_ChunkStart(t *testing.T) {
	end := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, end.AddDate(0, 0, -1), Granularity5Min.ChunkStart(end))
	assert.Equal(t, end.AddDate(-1, 0, 0), GranularityWeek.ChunkStart(end))
}

func TestParseGranularity_Unknown(t *testing.T) {
	_, err := ParseGranularity("2min")
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
