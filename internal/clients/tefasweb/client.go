// Package tefasweb scrapes the public TEFAS fund analysis page. It is
// the fallback when the registry API is down or lags behind.
package tefasweb

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

const defaultBaseURL = "https://www.tefas.gov.tr"

// Client scrapes FonAnaliz.aspx for a single fund.
type Client struct {
	baseURL string
	http    *resty.Client
	log     zerolog.Logger
}

// NewClient creates a TEFAS page scraper.
func NewClient(log zerolog.Logger) *Client {
	http := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(1).
		SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	return &Client{
		baseURL: defaultBaseURL,
		http:    http,
		log:     log.With().Str("client", "tefasweb").Logger(),
	}
}

// SetBaseURL overrides the page host, used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// Name identifies the rate-limit bucket this client draws from. It
// shares the registry API's bucket since both hit tefas.gov.tr.
func (c *Client) Name() string { return "tefas" }

// Fetch scrapes the fund page and extracts the title and unit price.
func (c *Client) Fetch(ctx context.Context, code string) (*domain.PriceQuote, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("FonKod", code).
		Get(c.baseURL + "/FonAnaliz.aspx")
	if err != nil {
		return nil, fmt.Errorf("tefas page request: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("tefas page returned status %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("tefas page parse: %w", err)
	}

	title := strings.TrimSpace(doc.Find("span#MainContent_PanelInfo_lblFundTitle").Text())
	if title == "" {
		return nil, fmt.Errorf("fund %q not found on tefas page", code)
	}

	price, err := extractPrice(doc)
	if err != nil {
		return nil, fmt.Errorf("fund %q: %w", code, err)
	}

	c.log.Debug().Str("fund", code).Str("price", price.String()).Msg("Fund price scraped")

	return &domain.PriceQuote{
		Symbol:   code,
		Name:     title,
		Price:    price,
		Currency: "TRY",
		Source:   "TEFAS (web)",
		AsOf:     time.Now(),
	}, nil
}

// extractPrice walks the info list for the item labeled "Fiyat" and
// parses its value, which uses the Turkish decimal comma.
func extractPrice(doc *goquery.Document) (decimal.Decimal, error) {
	var raw string
	doc.Find("ul.top-list li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		spans := li.Find("span")
		if spans.Length() < 2 {
			return true
		}
		label := strings.TrimSpace(spans.Eq(0).Text())
		if !strings.HasPrefix(label, "Fiyat") {
			return true
		}
		raw = strings.TrimSpace(spans.Eq(1).Text())
		return false
	})
	if raw == "" {
		return decimal.Zero, fmt.Errorf("price field missing")
	}

	return parseTurkishDecimal(raw)
}

// parseTurkishDecimal converts "1.234,5678" (optionally with a trailing
// currency marker) into a decimal.
func parseTurkishDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "TL"))
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed price %q", s)
	}
	return d, nil
}
