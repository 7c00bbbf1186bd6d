package marketdata

import (
	"fmt"
	"strings"

	"github.com/alejandrodnm/candlebot/internal/domain"
	"github.com/shopspring/decimal"
)

// intervals traduce granularidades a los nombres de intervalo de la API.
var intervals = map[domain.Granularity]string{
	domain.Granularity1Min:  "CANDLE_INTERVAL_1_MIN",
	domain.Granularity5Min:  "CANDLE_INTERVAL_5_MIN",
	domain.Granularity15Min: "CANDLE_INTERVAL_15_MIN",
	domain.GranularityHour:  "CANDLE_INTERVAL_HOUR",
	domain.GranularityDay:   "CANDLE_INTERVAL_DAY",
	domain.GranularityWeek:  "CANDLE_INTERVAL_WEEK",
	domain.GranularityMonth: "CANDLE_INTERVAL_MONTH",
}

func intervalOf(g domain.Granularity) (string, error) {
	v, ok := intervals[g]
	if !ok {
		return "", fmt.Errorf("unsupported granularity %q", g)
	}
	return v, nil
}

func granularityOf(interval string) (domain.Granularity, error) {
	for g, v := range intervals {
		if v == interval {
			return g, nil
		}
	}
	return "", fmt.Errorf("unsupported interval %q", interval)
}

// mapQuotation convierte units + nano a decimal exacto.
func mapQuotation(q quotation) decimal.Decimal {
	return decimal.NewFromInt(q.Units).Add(decimal.New(int64(q.Nano), -9))
}

// mapCandles convierte las velas completas a domain.Candle. Las incompletas
// (la vela en curso) se descartan.
func mapCandles(raw []historicCandle, g domain.Granularity) []domain.Candle {
	out := make([]domain.Candle, 0, len(raw))
	for _, r := range raw {
		if !r.IsComplete {
			continue
		}
		out = append(out, domain.Candle{
			Open:        mapQuotation(r.Open),
			Close:       mapQuotation(r.Close),
			High:        mapQuotation(r.High),
			Low:         mapQuotation(r.Low),
			Time:        r.Time.UTC(),
			Granularity: g,
		})
	}
	return out
}

// mapInstrument convierte el DTO a domain.Instrument. La moneda se normaliza
// a mayúsculas ("rub" → "RUB").
func mapInstrument(r instrument) domain.Instrument {
	return domain.Instrument{
		Ticker:            r.Ticker,
		FIGI:              r.FIGI,
		Name:              r.Name,
		Currency:          strings.ToUpper(r.Currency),
		LotSize:           r.Lot,
		MinPriceIncrement: mapQuotation(r.MinPriceIncrement),
	}
}
