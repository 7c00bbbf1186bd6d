package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/alejandrodnm/candlebot/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://invest-public-api.tinkoff.ru/rest"

	// Rate limits al 60% de los documentados.
	// market data: 300/min → 180/min → 3/s
	candlesRatePerSec = 3
	// instruments: 200/min → 120/min → 2/s
	instrumentsRatePerSec = 2

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// StatusError es una respuesta 4xx que no se reintenta.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client error %d: %s", e.Code, e.Body)
}

// Client es el HTTP client de market data con rate limiting y retries.
// Implementa ports.MarketDataProvider y ports.InstrumentProvider.
type Client struct {
	http               *http.Client
	baseURL            string
	token              string
	candlesLimiter     *rate.Limiter
	instrumentsLimiter *rate.Limiter
}

// NewClient crea un Client. Si baseURL está vacío usa el de producción.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:               &http.Client{Timeout: timeout},
		baseURL:            baseURL,
		token:              token,
		candlesLimiter:     rate.NewLimiter(candlesRatePerSec, 3),
		instrumentsLimiter: rate.NewLimiter(instrumentsRatePerSec, 2),
	}
}

// Now es la hora actual del proveedor.
func (c *Client) Now() time.Time {
	return time.Now().UTC()
}

// FetchCandles pide las velas de [from, to). El rango no puede superar el
// máximo por request de la granularidad; partirlo es cosa del agregador.
func (c *Client) FetchCandles(ctx context.Context, ticker string, from, to time.Time, g domain.Granularity) ([]domain.Candle, error) {
	interval, err := intervalOf(g)
	if err != nil {
		return nil, fmt.Errorf("marketdata.FetchCandles: %w", err)
	}
	if g.ChunkStart(to).After(from) {
		return nil, fmt.Errorf("marketdata.FetchCandles: %s..%s exceeds the %s request span",
			from.Format(time.RFC3339), to.Format(time.RFC3339), g)
	}

	q := url.Values{}
	q.Set("ticker", ticker)
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))
	q.Set("interval", interval)

	var resp candlesResponse
	if err := c.get(ctx, c.candlesLimiter, c.baseURL+"/market/candles?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("marketdata.FetchCandles %s: %w", ticker, err)
	}
	return mapCandles(resp.Candles, g), nil
}

// FindInstrument devuelve la metadata del ticker.
func (c *Client) FindInstrument(ctx context.Context, ticker string) (domain.Instrument, error) {
	var resp instrumentResponse
	err := c.get(ctx, c.instrumentsLimiter, c.baseURL+"/instruments/"+url.PathEscape(ticker), &resp)
	var status *StatusError
	if errors.As(err, &status) && status.Code == http.StatusNotFound {
		return domain.Instrument{}, fmt.Errorf("marketdata.FindInstrument %s: %w", ticker, domain.ErrInstrumentNotFound)
	}
	if err != nil {
		return domain.Instrument{}, fmt.Errorf("marketdata.FindInstrument %s: %w", ticker, err)
	}
	return mapInstrument(resp.Instrument), nil
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by API", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return &StatusError{Code: resp.StatusCode, Body: string(body)}
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
