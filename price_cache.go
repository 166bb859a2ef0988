package walletpnl

import (
	"strings"
	"time"
)

const (
	defaultPriceTTL   = 5 * time.Minute
	defaultNoFeedTTL  = 24 * time.Hour
	defaultHistoryTTL = 24 * time.Hour
)

// PriceCache remembers current USD prices and contracts known to have no
// price listing. It is shared by every request of the process; each store
// has its own lock.
type PriceCache struct {
	prices *ttlCache[float64]
	noFeed *ttlCache[struct{}]
}

// PartitionResult splits a batch of contracts by cache state.
type PartitionResult struct {
	Cached  map[string]float64
	ToFetch []string
	Skipped []string
}

// CacheStats reports live entry counts after purging expired ones.
type CacheStats struct {
	Prices int
	NoFeed int
}

// NewPriceCache builds a cache from cfg, using defaults for zero fields.
func NewPriceCache(cfg Config) *PriceCache {
	priceTTL := cfg.PriceTTL
	if priceTTL <= 0 {
		priceTTL = defaultPriceTTL
	}
	noFeedTTL := cfg.NoFeedTTL
	if noFeedTTL <= 0 {
		noFeedTTL = defaultNoFeedTTL
	}
	priceMax := cfg.PriceMaxEntries
	if priceMax <= 0 {
		priceMax = defaultPriceMaxEntries
	}
	noFeedMax := cfg.NoFeedMaxEntries
	if noFeedMax <= 0 {
		noFeedMax = defaultNoFeedMaxEntries
	}
	return &PriceCache{
		prices: newTTLCache[float64](priceMax, priceTTL),
		noFeed: newTTLCache[struct{}](noFeedMax, noFeedTTL),
	}
}

// Price returns a live cached price for addr.
func (c *PriceCache) Price(addr string) (float64, bool) {
	return c.prices.Get(strings.ToLower(addr))
}

// IsNoFeed reports whether addr was recently confirmed to have no listing.
func (c *PriceCache) IsNoFeed(addr string) bool {
	_, ok := c.noFeed.Get(strings.ToLower(addr))
	return ok
}

// RecordPrice stores a fresh price for addr.
func (c *PriceCache) RecordPrice(addr string, usd float64) {
	c.prices.Add(strings.ToLower(addr), usd)
}

// RecordNoFeed marks addr as unlisted for the no-feed TTL.
func (c *PriceCache) RecordNoFeed(addr string) {
	c.noFeed.Add(strings.ToLower(addr), struct{}{})
}

// Partition classifies addrs without touching the network. No-feed entries
// win over priced ones.
func (c *PriceCache) Partition(addrs []string) PartitionResult {
	result := PartitionResult{Cached: make(map[string]float64)}
	for _, addr := range addrs {
		key := strings.ToLower(addr)
		if c.IsNoFeed(key) {
			result.Skipped = append(result.Skipped, key)
			cacheLookups.WithLabelValues("no_feed").Inc()
			continue
		}
		if price, ok := c.Price(key); ok {
			result.Cached[key] = price
			cacheLookups.WithLabelValues("hit").Inc()
			continue
		}
		result.ToFetch = append(result.ToFetch, key)
		cacheLookups.WithLabelValues("miss").Inc()
	}
	return result
}

// Stats purges expired entries and returns what is left.
func (c *PriceCache) Stats() CacheStats {
	return CacheStats{
		Prices: c.prices.PurgeExpired(),
		NoFeed: c.noFeed.PurgeExpired(),
	}
}
