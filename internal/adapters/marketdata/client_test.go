package marketdata_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/candlebot/internal/adapters/marketdata"
	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const candlesFixture = `{"candles": [
	{"open": {"units": "101", "nano": 500000000}, "high": {"units": "102", "nano": 0},
	 "low": {"units": "100", "nano": 250000000}, "close": {"units": "101", "nano": 750000000},
	 "volume": "42", "time": "2024-03-04T10:01:00Z", "isComplete": true},
	{"open": {"units": "100", "nano": 0}, "high": {"units": "100", "nano": 0},
	 "low": {"units": "100", "nano": 0}, "close": {"units": "100", "nano": 0},
	 "volume": "7", "time": "2024-03-04T10:00:00Z", "isComplete": true},
	{"open": {"units": "103", "nano": 0}, "high": {"units": "103", "nano": 0},
	 "low": {"units": "103", "nano": 0}, "close": {"units": "103", "nano": 0},
	 "volume": "1", "time": "2024-03-04T10:02:00Z", "isComplete": false}
]}`

var (
	from = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	to   = from.AddDate(0, 0, 1)
)

func TestFetchCandles_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/market/candles", r.URL.Path)
		assert.Equal(t, "SBER", r.URL.Query().Get("ticker"))
		assert.Equal(t, "CANDLE_INTERVAL_1_MIN", r.URL.Query().Get("interval"))
		assert.Equal(t, "2024-03-04T00:00:00Z", r.URL.Query().Get("from"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(candlesFixture))
	}))
	defer srv.Close()

	client := marketdata.NewClient(srv.URL, "secret", time.Second)
	candles, err := client.FetchCandles(context.Background(), "SBER", from, to, domain.Granularity1Min)

	require.NoError(t, err)
	require.Len(t, candles, 2, "incomplete candle dropped")

	c := candles[0]
	assert.Equal(t, "101.5", c.Open.String())
	assert.Equal(t, "100.25", c.Low.String())
	assert.Equal(t, "101.75", c.Close.String())
	assert.Equal(t, domain.Granularity1Min, c.Granularity)
	assert.Equal(t, time.Date(2024, 3, 4, 10, 1, 0, 0, time.UTC), c.Time)
}

func TestFetchCandles_SpanTooWide(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client := marketdata.NewClient(srv.URL, "", time.Second)
	_, err := client.FetchCandles(context.Background(), "SBER", from, to.Add(time.Minute), domain.GranularityHour)

	assert.Error(t, err)
	assert.Zero(t, hits.Load())
}

func TestFetchCandles_RetriesServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"candles": []}`))
	}))
	defer srv.Close()

	client := marketdata.NewClient(srv.URL, "", time.Second)
	candles, err := client.FetchCandles(context.Background(), "SBER", from, to, domain.Granularity5Min)

	require.NoError(t, err)
	assert.Empty(t, candles)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchCandles_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad token"))
	}))
	defer srv.Close()

	client := marketdata.NewClient(srv.URL, "", time.Second)
	_, err := client.FetchCandles(context.Background(), "SBER", from, to, domain.Granularity1Min)

	var status *marketdata.StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusUnauthorized, status.Code)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFindInstrument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instruments/SBER" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"instrument": {"ticker": "SBER", "figi": "BBG004730N88", "name": "Sberbank",
			"currency": "rub", "lot": 10, "minPriceIncrement": {"units": "0", "nano": 10000000}}}`))
	}))
	defer srv.Close()

	client := marketdata.NewClient(srv.URL, "", time.Second)

	inst, err := client.FindInstrument(context.Background(), "SBER")
	require.NoError(t, err)
	assert.Equal(t, "RUB", inst.Currency)
	assert.Equal(t, int64(10), inst.LotSize)
	assert.Equal(t, "0.01", inst.MinPriceIncrement.String())

	_, err = client.FindInstrument(context.Background(), "NOPE")
	assert.ErrorIs(t, err, domain.ErrInstrumentNotFound)
}
