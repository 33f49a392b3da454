// Package goldweb scrapes the published gram-gold price. It is the
// fallback when the computed ounce cross rate cannot be derived.
package goldweb

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ekurt/finassist/internal/domain"
)

const defaultBaseURL = "https://www.bloomberght.com"

// Client scrapes the gram-gold quote page.
type Client struct {
	baseURL string
	http    *resty.Client
	log     zerolog.Logger
}

// NewClient creates a gram-gold page scraper.
func NewClient(log zerolog.Logger) *Client {
	http := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(1).
		SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	return &Client{
		baseURL: defaultBaseURL,
		http:    http,
		log:     log.With().Str("client", "goldweb").Logger(),
	}
}

// SetBaseURL overrides the page host, used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// Name identifies the rate-limit bucket this client draws from.
func (c *Client) Name() string { return "bloomberg" }

// Fetch scrapes the current gram-gold price in TRY. The symbol argument
// is ignored; the page only quotes one instrument.
func (c *Client) Fetch(ctx context.Context, _ string) (*domain.PriceQuote, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(c.baseURL + "/altin/gram-altin")
	if err != nil {
		return nil, fmt.Errorf("gold page request: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("gold page returned status %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("gold page parse: %w", err)
	}

	raw := strings.TrimSpace(doc.Find(".security-gram-altin .lastPrice").First().Text())
	if raw == "" {
		return nil, fmt.Errorf("gold price element missing from page")
	}

	price, err := parseTurkishDecimal(raw)
	if err != nil {
		return nil, err
	}

	c.log.Debug().Str("price", price.String()).Msg("Gram gold price scraped")

	return &domain.PriceQuote{
		Symbol:   "ALTIN",
		Name:     "Gram Altın",
		Price:    price,
		Currency: "TRY",
		Source:   "Bloomberg HT",
		AsOf:     time.Now(),
	}, nil
}

// parseTurkishDecimal converts "4.123,45" into a decimal.
func parseTurkishDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "TL"))
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed gold price %q", s)
	}
	return d, nil
}
