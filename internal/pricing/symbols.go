package pricing

import "strings"

// GoldSymbol is the gram-gold query handled by the computed cross-rate step.
const GoldSymbol = "ALTIN"

// gramsPerTroyOunce converts a troy-ounce gold price into a per-gram price.
const gramsPerTroyOunce = 31.1035

// localMarketSuffix is appended to bare tickers to try them as local
// exchange listings first (Borsa Istanbul on Yahoo).
const localMarketSuffix = ".IS"

// marketAliases maps colloquial currency/commodity/crypto queries to the
// tickers the market source understands. Generic currency codes resolve to
// their TRY cross pairs.
var marketAliases = map[string]string{
	"USD":     "TRY=X",
	"DOLAR":   "TRY=X",
	"EUR":     "EURTRY=X",
	"EURO":    "EURTRY=X",
	"GBP":     "GBPTRY=X",
	"STERLIN": "GBPTRY=X",
	"BTC":     "BTC-USD",
	"BITCOIN": "BTC-USD",
}

// Normalize canonicalizes a user query: uppercase, trimmed, commas removed,
// trailing punctuation stripped, first whitespace-delimited token only.
func Normalize(query string) string {
	q := strings.ToUpper(strings.TrimSpace(query))
	q = strings.ReplaceAll(q, ",", "")

	fields := strings.Fields(q)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimRight(fields[0], ".;:!?")
}

// isFundCode reports whether a normalized query looks like a TEFAS fund
// code. Fund codes are exactly three characters.
func isFundCode(symbol string) bool {
	return len(symbol) == 3
}
