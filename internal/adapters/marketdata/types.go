package marketdata

import "time"

// DTOs raw de la API de market data. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// quotation es un decimal partido en parte entera y nanos (1e-9).
type quotation struct {
	Units int64 `json:"units,string"`
	Nano  int32 `json:"nano"`
}

// candlesResponse es la respuesta de GET /market/candles.
type candlesResponse struct {
	Candles []historicCandle `json:"candles"`
}

// historicCandle es una vela tal como la devuelve el broker.
type historicCandle struct {
	Open       quotation `json:"open"`
	High       quotation `json:"high"`
	Low        quotation `json:"low"`
	Close      quotation `json:"close"`
	Volume     int64     `json:"volume,string"`
	Time       time.Time `json:"time"`
	IsComplete bool      `json:"isComplete"`
}

// instrumentResponse es la respuesta de GET /instruments/{ticker}.
type instrumentResponse struct {
	Instrument instrument `json:"instrument"`
}

type instrument struct {
	Ticker            string    `json:"ticker"`
	FIGI              string    `json:"figi"`
	Name              string    `json:"name"`
	Currency          string    `json:"currency"`
	Lot               int64     `json:"lot"`
	MinPriceIncrement quotation `json:"minPriceIncrement"`
}

// fixture es el formato de los ficheros que sirve Static.
type fixture struct {
	Now     time.Time       `json:"now"`
	Markets []fixtureMarket `json:"markets"`
}

type fixtureMarket struct {
	Instrument instrument       `json:"instrument"`
	Interval   string           `json:"interval"`
	Candles    []historicCandle `json:"candles"`
}
