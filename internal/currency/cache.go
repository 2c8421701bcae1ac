package currency

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Pair is an ordered currency pair. Rate(USD, INR) and Rate(INR, USD) are
// cached independently.
type Pair struct {
	From string
	To   string
}

// RateCache is a concurrency-safe map of exchange rates.
//
// Entries are never evicted or expired: a rate cached once, including a 1.0
// fallback after a failed lookup, is served for the lifetime of the cache.
// Concurrent writers for the same pair are allowed; the last Put wins.
type RateCache struct {
	mu    sync.RWMutex
	rates map[Pair]decimal.Decimal
}

// NewRateCache returns an empty cache.
func NewRateCache() *RateCache {
	return &RateCache{rates: make(map[Pair]decimal.Decimal)}
}

// Get returns the cached rate for p.
func (c *RateCache) Get(p Pair) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rate, ok := c.rates[p]
	return rate, ok
}

// Put stores rate for p, replacing any previous value.
func (c *RateCache) Put(p Pair, rate decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates[p] = rate
}

// Len returns the number of cached pairs.
func (c *RateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rates)
}
