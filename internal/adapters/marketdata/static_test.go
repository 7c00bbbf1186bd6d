package marketdata_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/candlebot/internal/adapters/marketdata"
	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFixture(t *testing.T) {
	s, err := marketdata.LoadFixture("../../../testdata/fixtures/market.json")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), s.Now())

	inst, err := s.FindInstrument(context.Background(), "GAZP")
	require.NoError(t, err)
	assert.Equal(t, "RUB", inst.Currency)
	assert.Equal(t, int64(10), inst.LotSize)

	start := time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)
	candles, err := s.FetchCandles(context.Background(), "SBER", start, start.Add(10*time.Minute), domain.Granularity1Min)
	require.NoError(t, err)
	require.Len(t, candles, 10)
	assert.Equal(t, "280", candles[0].Close.String())
	assert.Equal(t, "280.1", candles[1].Close.String())

	other, err := s.FetchCandles(context.Background(), "SBER", start, start.Add(10*time.Minute), domain.GranularityHour)
	require.NoError(t, err)
	assert.Empty(t, other, "granularity must match")
}

func TestStatic_UnknownInstrument(t *testing.T) {
	s := marketdata.NewStatic(time.Now())
	_, err := s.FindInstrument(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrInstrumentNotFound)
}

func TestLoadFixture_MissingFile(t *testing.T) {
	_, err := marketdata.LoadFixture("does-not-exist.json")
	assert.Error(t, err)
}
