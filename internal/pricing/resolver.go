// Package pricing resolves current prices for funds, equities, currencies
// and commodities by cascading over external data sources, with a TTL
// cache in front and a rate-limit gate before every network attempt.
package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ekurt/finassist/internal/domain"
	"github.com/ekurt/finassist/internal/ratelimit"
)

// Source is the capability shared by all price adapters. Fetch tries one
// source once (plus at most one internal retry) and reduces every failure
// to (nil, err); it never panics and never blocks past its own timeout.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (*domain.PriceQuote, error)
}

// LastPricer fetches a bare last price for a market ticker. The computed
// gold source uses it for the ounce price and the FX cross rate.
type LastPricer interface {
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Rounding scales per instrument class. Fund unit prices carry four
// decimals; everything else is quoted to cents.
const (
	scaleMarket = 2
	scaleFund   = 4
)

// attempt is one planned cascade step: which source to try, which symbol
// to hand it, and how to round a successful price.
type attempt struct {
	source Source
	symbol string
	scale  int32
}

// ResolverConfig wires a Resolver. Cache, Limiter and MarketSource are
// required; the rest degrade gracefully when absent.
type ResolverConfig struct {
	Cache        *QuoteCache
	Limiter      *ratelimit.Limiter
	FundSources  []Source   // tried in order for 3-letter fund codes
	MarketSource Source     // equities, FX, commodities, crypto
	FX           LastPricer // raw tickers for the gold computation
	GoldFallback Source     // scrape fallback when the computation fails
	Log          zerolog.Logger
}

// Resolver orchestrates the price cascade. Steps for a single query run
// sequentially and short-circuit on the first success; independent queries
// run in parallel sharing the cache and the rate buckets.
type Resolver struct {
	cache        *QuoteCache
	limiter      *ratelimit.Limiter
	fundSources  []Source
	marketSource Source
	goldComputed Source
	goldFallback Source
	log          zerolog.Logger
}

// NewResolver creates a resolver from cfg.
func NewResolver(cfg ResolverConfig) *Resolver {
	r := &Resolver{
		cache:        cfg.Cache,
		limiter:      cfg.Limiter,
		fundSources:  cfg.FundSources,
		marketSource: cfg.MarketSource,
		goldFallback: cfg.GoldFallback,
		log:          cfg.Log.With().Str("component", "resolver").Logger(),
	}
	if cfg.FX != nil {
		r.goldComputed = newGoldSource(cfg.FX)
	}
	return r
}

// Resolve normalizes the query, consults the cache, then walks the cascade
// until a source produces a quote. Source failures never surface; only
// total exhaustion yields a NotFoundError carrying the original query.
func (r *Resolver) Resolve(ctx context.Context, query string) (domain.PriceQuote, error) {
	symbol := Normalize(query)
	if symbol == "" {
		return domain.PriceQuote{}, fmt.Errorf("empty query: %w", domain.ErrInvalidArgument)
	}

	if quote, ok := r.cache.Get(symbol); ok {
		r.log.Debug().Str("symbol", symbol).Str("source", quote.Source).Msg("Cache hit")
		return quote, nil
	}

	for _, at := range r.plan(symbol) {
		r.limiter.Acquire(at.source.Name())

		quote, err := at.source.Fetch(ctx, at.symbol)
		if err != nil {
			r.log.Debug().
				Err(err).
				Str("source", at.source.Name()).
				Str("symbol", at.symbol).
				Msg("Source attempt failed")
			continue
		}
		if quote == nil || !quote.Price.IsPositive() {
			continue
		}

		resolved := *quote
		resolved.Price = resolved.Price.Round(at.scale)
		if resolved.AsOf.IsZero() {
			resolved.AsOf = time.Now()
		}

		r.cache.Put(symbol, resolved)
		r.log.Info().
			Str("query", symbol).
			Str("symbol", resolved.Symbol).
			Str("price", resolved.Price.String()).
			Str("source", resolved.Source).
			Msg("Price resolved")
		return resolved, nil
	}

	r.log.Warn().Str("query", query).Msg("No source could resolve query")
	return domain.PriceQuote{}, domain.NotFoundError{Query: query}
}

// plan builds the ordered cascade for one normalized symbol:
//  1. fund registry sources for 3-letter fund codes
//  2. the market source with the local exchange suffix for bare tickers
//  3. the market source with the alias-mapped raw symbol
//  4. for gram gold, the computed cross rate, then the scrape fallback
func (r *Resolver) plan(symbol string) []attempt {
	var attempts []attempt

	if isFundCode(symbol) {
		for _, src := range r.fundSources {
			attempts = append(attempts, attempt{source: src, symbol: symbol, scale: scaleFund})
		}
	}

	if r.marketSource != nil {
		if !strings.Contains(symbol, ".") {
			attempts = append(attempts, attempt{
				source: r.marketSource,
				symbol: symbol + localMarketSuffix,
				scale:  scaleMarket,
			})
		}

		mapped := symbol
		if alias, ok := marketAliases[symbol]; ok {
			mapped = alias
		}
		attempts = append(attempts, attempt{source: r.marketSource, symbol: mapped, scale: scaleMarket})
	}

	if symbol == GoldSymbol {
		if r.goldComputed != nil {
			attempts = append(attempts, attempt{source: r.goldComputed, symbol: symbol, scale: scaleMarket})
		}
		if r.goldFallback != nil {
			attempts = append(attempts, attempt{source: r.goldFallback, symbol: symbol, scale: scaleMarket})
		}
	}

	return attempts
}

// goldSource derives a gram-gold price in TRY from the troy-ounce USD
// price and the USD/TRY rate. It shares the market source's rate budget.
type goldSource struct {
	fx LastPricer
}

func newGoldSource(fx LastPricer) *goldSource {
	return &goldSource{fx: fx}
}

func (g *goldSource) Name() string { return "yahoo" }

func (g *goldSource) Fetch(ctx context.Context, _ string) (*domain.PriceQuote, error) {
	ounceUSD, err := g.fx.LastPrice(ctx, "XAUUSD=X")
	if err != nil {
		return nil, fmt.Errorf("ounce price: %w", err)
	}

	usdTRY, err := g.fx.LastPrice(ctx, "TRY=X")
	if err != nil {
		return nil, fmt.Errorf("usd/try rate: %w", err)
	}

	gramTRY := ounceUSD.Mul(usdTRY).Div(decimal.NewFromFloat(gramsPerTroyOunce))
	return &domain.PriceQuote{
		Symbol:   GoldSymbol,
		Price:    gramTRY,
		Currency: "TRY",
		Source:   "Yahoo (computed)",
		AsOf:     time.Now(),
	}, nil
}
