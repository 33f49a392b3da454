// Package ratelimit provides a per-resource token bucket limiter used to
// keep outbound calls to external data sources within their tolerated
// request budgets.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Limit describes the budget for one named resource.
type Limit struct {
	Rate  float64 // tokens added per second
	Burst float64 // bucket capacity
}

// Status is a point-in-time snapshot of one bucket.
type Status struct {
	Resource        string  `json:"resource"`
	AvailableTokens float64 `json:"available_tokens"`
	RatePerSecond   float64 `json:"rate_per_second"`
	MaxBurst        float64 `json:"max_burst"`
}

// bucket holds the mutable state for one resource. Each bucket has its own
// lock so resources never contend with each other.
type bucket struct {
	mu     sync.Mutex
	tokens float64
	rate   float64
	burst  float64
	last   time.Time
}

// Limiter hands out tokens per named resource. Buckets are created lazily;
// resources without an explicit limit fall back to the default limit.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limits   map[string]Limit
	fallback Limit
	log      zerolog.Logger

	// overridable in tests
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a limiter with the given per-resource limits. Resources not
// present in limits use fallback.
func New(limits map[string]Limit, fallback Limit, log zerolog.Logger) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*bucket),
		limits:   limits,
		fallback: fallback,
		log:      log.With().Str("component", "ratelimit").Logger(),
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Acquire takes one token from the resource's bucket, waiting if necessary.
// It returns false only for a drained bucket that can never refill.
func (l *Limiter) Acquire(resource string) bool {
	return l.AcquireN(resource, 1, true)
}

// AcquireN takes n tokens from the resource's bucket.
//
// When enough tokens are available they are deducted immediately. When they
// are not and block is true, the caller sleeps just long enough for the
// bucket to refill the shortfall, then deducts and succeeds; the bucket lock
// is released during the wait so other resources, and later callers of this
// one, are never starved by a sleeper. When block is false, or the bucket
// has a zero refill rate, the call fails without waiting. Tokens never go
// negative.
func (l *Limiter) AcquireN(resource string, n float64, block bool) bool {
	b := l.bucket(resource)

	b.mu.Lock()
	b.refill(l.now())

	if b.tokens >= n {
		b.tokens -= n
		b.mu.Unlock()
		return true
	}

	// A bucket with no refill rate will never cover the shortfall, so
	// waiting on it would sleep forever.
	if !block || b.rate <= 0 {
		b.mu.Unlock()
		return false
	}

	needed := n - b.tokens
	wait := time.Duration(needed / b.rate * float64(time.Second))
	b.mu.Unlock()

	l.log.Debug().
		Str("resource", resource).
		Dur("wait", wait).
		Msg("Rate limit reached, waiting for refill")
	l.sleep(wait)

	b.mu.Lock()
	b.refill(l.now())
	b.tokens -= n
	if b.tokens < 0 {
		b.tokens = 0
	}
	b.mu.Unlock()
	return true
}

// Status reports the current state of the resource's bucket after a refill.
func (l *Limiter) Status(resource string) Status {
	b := l.bucket(resource)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(l.now())

	return Status{
		Resource:        resource,
		AvailableTokens: b.tokens,
		RatePerSecond:   b.rate,
		MaxBurst:        b.burst,
	}
}

// bucket returns the bucket for resource, creating a full one on first use.
func (l *Limiter) bucket(resource string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[resource]; ok {
		return b
	}

	limit, ok := l.limits[resource]
	if !ok {
		limit = l.fallback
	}

	b := &bucket{
		tokens: limit.Burst,
		rate:   limit.Rate,
		burst:  limit.Burst,
		last:   l.now(),
	}
	l.buckets[resource] = b
	return b
}

// refill credits tokens for the time elapsed since the last refill,
// capped at the bucket capacity. Caller must hold b.mu.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(b.burst, b.tokens+elapsed*b.rate)
	}
	b.last = now
}
