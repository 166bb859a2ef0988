package walletpnl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defiLlamaEndpoint     = "https://coins.llama.fi"
	defaultHistoryWorkers = 8
	historyMaxDelta       = 36 * time.Hour
	secondsPerDay         = 86400
)

var defiLlamaLogger = NewLogger("defillama")

// HistorySource resolves daily price series for a batch of contracts.
type HistorySource interface {
	FetchHistories(ctx context.Context, contracts []string, chain Chain, minTs, maxTs int64) map[string][]PricePoint
}

// DefiLlamaClient fetches daily price series. Results are cached per coin,
// start day and span; published history does not change.
type DefiLlamaClient struct {
	Endpoint   string
	HTTPClient *http.Client
	Logger     Logger
	Workers    int

	cache      *ttlCache[[]PricePoint]
	clientOnce sync.Once
	cacheOnce  sync.Once
}

// NewDefiLlamaClient builds a client with its own history cache.
func NewDefiLlamaClient(cfg Config, logger Logger) *DefiLlamaClient {
	ttl := cfg.HistoryTTL
	if ttl <= 0 {
		ttl = defaultHistoryTTL
	}
	maxEntries := cfg.HistoryMaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultHistoryMax
	}
	return &DefiLlamaClient{
		HTTPClient: newUpstreamHTTPClient(cfg.HTTPTimeout, nil),
		Logger:     logger,
		Workers:    cfg.HistoryWorkers,
		cache:      newTTLCache[[]PricePoint](maxEntries, ttl),
	}
}

func (c *DefiLlamaClient) logger() Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return defiLlamaLogger
}

func (c *DefiLlamaClient) endpoint() string {
	if c.Endpoint != "" {
		return strings.TrimRight(c.Endpoint, "/")
	}
	return defiLlamaEndpoint
}

func (c *DefiLlamaClient) httpClient() *http.Client {
	c.clientOnce.Do(func() {
		if c.HTTPClient == nil {
			c.HTTPClient = newUpstreamHTTPClient(defaultHTTPTimeout, nil)
		}
	})
	return c.HTTPClient
}

func (c *DefiLlamaClient) historyCache() *ttlCache[[]PricePoint] {
	c.cacheOnce.Do(func() {
		if c.cache == nil {
			c.cache = newTTLCache[[]PricePoint](defaultHistoryMax, defaultHistoryTTL)
		}
	})
	return c.cache
}

func (c *DefiLlamaClient) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return defaultHistoryWorkers
}

// historySpanDays covers [minTs, maxTs] plus a day of slack on either side.
func historySpanDays(minTs, maxTs int64) int64 {
	diff := maxTs - minTs
	if diff <= 0 {
		return 2
	}
	return (diff+secondsPerDay-1)/secondsPerDay + 2
}

// FetchHistory returns the daily series of one contract. Failures yield an
// empty series; only transport failures are left uncached.
func (c *DefiLlamaClient) FetchHistory(ctx context.Context, contract string, chain Chain, minTs, maxTs int64) []PricePoint {
	info, ok := LookupChain(chain)
	if !ok {
		return nil
	}
	coin := info.DefiLlamaPrefix + ":" + strings.ToLower(contract)
	span := historySpanDays(minTs, maxTs)
	key := fmt.Sprintf("%s:%d:%d", coin, floorDiv(minTs, secondsPerDay), span)

	cache := c.historyCache()
	if series, ok := cache.Get(key); ok {
		historyLookups.WithLabelValues("hit").Inc()
		return series
	}
	historyLookups.WithLabelValues("miss").Inc()

	target := fmt.Sprintf("%s/chart/%s?start=%d&span=%d&period=1d", c.endpoint(), coin, minTs, span)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.logger().Printf("history request warning coin=%s: %v", coin, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger().Printf("history status warning coin=%s status=%d", coin, resp.StatusCode)
		cache.Add(key, []PricePoint{})
		return nil
	}

	var payload struct {
		Coins map[string]struct {
			Prices []PricePoint `json:"prices"`
		} `json:"coins"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger().Printf("history decode warning coin=%s: %v", coin, err)
		return nil
	}

	series := payload.Coins[coin].Prices
	if len(series) == 0 {
		cache.Add(key, []PricePoint{})
		return nil
	}
	cache.Add(key, series)
	return series
}

// FetchHistories runs FetchHistory over a bounded pool of workers. Only
// contracts with a non-empty series appear in the result.
func (c *DefiLlamaClient) FetchHistories(ctx context.Context, contracts []string, chain Chain, minTs, maxTs int64) map[string][]PricePoint {
	result := make(map[string][]PricePoint)
	if len(contracts) == 0 {
		return result
	}

	series := make([][]PricePoint, len(contracts))
	var next atomic.Int64
	var wg sync.WaitGroup
	workers := min(c.workers(), len(contracts))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1) - 1)
				if i >= len(contracts) {
					return
				}
				series[i] = c.FetchHistory(ctx, contracts[i], chain, minTs, maxTs)
			}
		}()
	}
	wg.Wait()

	for i, contract := range contracts {
		if len(series[i]) > 0 {
			result[strings.ToLower(contract)] = series[i]
		}
	}
	c.logger().Printf("history fetch chain=%s contracts=%d series=%d workers=%d", chain, len(contracts), len(result), workers)
	return result
}

// PriceAt returns the price of the point nearest to targetTs, or false when
// series is empty or the nearest point is more than maxDelta away.
func PriceAt(series []PricePoint, targetTs int64, maxDelta time.Duration) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	best := series[0]
	bestDelta := absInt64(best.Timestamp - targetTs)
	for _, point := range series[1:] {
		if delta := absInt64(point.Timestamp - targetTs); delta < bestDelta {
			best, bestDelta = point, delta
		}
	}
	if bestDelta > int64(maxDelta/time.Second) {
		return 0, false
	}
	return best.Price, true
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
