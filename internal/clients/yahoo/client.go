// Package yahoo fetches last prices from the Yahoo Finance chart API.
// It covers equities, FX pairs, commodities and crypto.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ekurt/finassist/internal/domain"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Yahoo blocks default Go user agents, so requests present a browser.
const browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/118.0"

// Client for the v8 chart endpoint.
type Client struct {
	baseURL string
	http    *resty.Client
	log     zerolog.Logger
}

// NewClient creates a Yahoo Finance client.
func NewClient(log zerolog.Logger) *Client {
	http := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(1).
		SetHeader("User-Agent", browserUserAgent)

	return &Client{
		baseURL: defaultBaseURL,
		http:    http,
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// SetBaseURL overrides the API host, used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// Name identifies the rate-limit bucket this client draws from.
func (c *Client) Name() string { return "yahoo" }

type chartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	ShortName          string  `json:"shortName"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta chartMeta `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch returns the regular market price for a ticker.
func (c *Client) Fetch(ctx context.Context, symbol string) (*domain.PriceQuote, error) {
	meta, err := c.fetchMeta(ctx, symbol)
	if err != nil {
		return nil, err
	}

	c.log.Debug().
		Str("symbol", meta.Symbol).
		Float64("price", meta.RegularMarketPrice).
		Msg("Market price fetched")

	return &domain.PriceQuote{
		Symbol:   meta.Symbol,
		Name:     meta.ShortName,
		Price:    decimal.NewFromFloat(meta.RegularMarketPrice),
		Currency: meta.Currency,
		Source:   "Yahoo Finance",
		AsOf:     time.Now(),
	}, nil
}

// LastPrice returns only the price for a ticker. The gold cross-rate
// computation uses it for both legs.
func (c *Client) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	meta, err := c.fetchMeta(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(meta.RegularMarketPrice), nil
}

func (c *Client) fetchMeta(ctx context.Context, symbol string) (*chartMeta, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"interval": "1d",
			"range":    "1d",
		}).
		Get(c.baseURL + "/v8/finance/chart/" + symbol)
	if err != nil {
		return nil, fmt.Errorf("yahoo request: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("yahoo returned status %d for %q", resp.StatusCode(), symbol)
	}

	var parsed chartResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("yahoo response: %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error for %q: %s", symbol, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo has no data for %q", symbol)
	}

	meta := &parsed.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("yahoo has no market price for %q", symbol)
	}
	return meta, nil
}
