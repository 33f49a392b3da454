// Package tefas queries the official TEFAS fund registry API for
// Turkish mutual fund unit prices.
package tefas

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ekurt/finassist/internal/domain"
)

const defaultBaseURL = "https://www.tefas.gov.tr"

// Client for the TEFAS BindHistoryInfo endpoint.
type Client struct {
	baseURL string
	http    *resty.Client
	log     zerolog.Logger
}

// NewClient creates a TEFAS registry client.
func NewClient(log zerolog.Logger) *Client {
	http := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(1).
		SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	return &Client{
		baseURL: defaultBaseURL,
		http:    http,
		log:     log.With().Str("client", "tefas").Logger(),
	}
}

// SetBaseURL overrides the API host, used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// Name identifies the rate-limit bucket this client draws from.
func (c *Client) Name() string { return "tefas" }

type historyResponse struct {
	Data []historyRow `json:"data"`
}

type historyRow struct {
	Timestamp string  `json:"TARIH"` // epoch millis as a string
	Code      string  `json:"FONKODU"`
	Title     string  `json:"FONUNVAN"`
	Price     float64 `json:"FIYAT"`
}

// Fetch returns the most recent unit price published for a fund code.
// The registry only publishes on business days, so the query spans the
// last week and the newest row wins.
func (c *Client) Fetch(ctx context.Context, code string) (*domain.PriceQuote, error) {
	now := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"fontip":    "YAT",
			"fonkod":    code,
			"bastarih":  now.AddDate(0, 0, -7).Format("02.01.2006"),
			"bittarih":  now.Format("02.01.2006"),
			"kurucukod": "",
		}).
		Post(c.baseURL + "/api/DB/BindHistoryInfo")
	if err != nil {
		return nil, fmt.Errorf("tefas request: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("tefas returned status %d", resp.StatusCode())
	}

	var parsed historyResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("tefas response: %w", err)
	}

	latest, ok := newestRow(parsed.Data)
	if !ok {
		return nil, fmt.Errorf("tefas has no rows for fund %q", code)
	}

	c.log.Debug().
		Str("fund", latest.Code).
		Float64("price", latest.Price).
		Msg("Fund price fetched")

	return &domain.PriceQuote{
		Symbol:   latest.Code,
		Name:     latest.Title,
		Price:    decimal.NewFromFloat(latest.Price),
		Currency: "TRY",
		Source:   "TEFAS",
		AsOf:     time.Now(),
	}, nil
}

func newestRow(rows []historyRow) (historyRow, bool) {
	var best historyRow
	var bestTS int64 = -1
	for _, row := range rows {
		if row.Price <= 0 {
			continue
		}
		ts, err := strconv.ParseInt(row.Timestamp, 10, 64)
		if err != nil {
			ts = 0
		}
		if ts > bestTS {
			best, bestTS = row, ts
		}
	}
	return best, bestTS >= 0
}
