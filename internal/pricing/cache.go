package pricing

import (
	"sync"
	"time"

	"github.com/ekurt/finassist/internal/domain"
)

// DefaultCacheTTL is how long a resolved quote stays fresh.
const DefaultCacheTTL = 60 * time.Second

type cacheEntry struct {
	quote     domain.PriceQuote
	fetchedAt time.Time
}

// QuoteCache keeps the most recent successful quote per normalized query.
// Only successful lookups are stored, so a transient source outage never
// poisons results for the TTL window. Expiry is lazy: entries are checked
// on read and the key space is small, so no eviction loop is needed.
type QuoteCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry

	now func() time.Time
}

// NewQuoteCache creates a cache with the given TTL. A non-positive TTL
// falls back to DefaultCacheTTL.
func NewQuoteCache(ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &QuoteCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached quote for key if it is still fresh.
func (c *QuoteCache) Get(key string) (domain.PriceQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return domain.PriceQuote{}, false
	}
	return e.quote, true
}

// Put stores a successful quote under key.
func (c *QuoteCache) Put(key string, quote domain.PriceQuote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{quote: quote, fetchedAt: c.now()}
}

// Sweep drops expired entries and returns how many were removed. Used by
// the maintenance job; correctness never depends on it.
func (c *QuoteCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.fetchedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, expired ones included.
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
