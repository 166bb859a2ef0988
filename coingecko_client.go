package walletpnl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	coinGeckoEndpoint  = "https://api.coingecko.com/api/v3"
	coinGeckoChunkSize = 50 // simple/token_price accepts at most 50 contracts
	defaultChunkDelay  = 500 * time.Millisecond
	defaultRetryDelay  = 5 * time.Second
)

var coinGeckoLogger = NewLogger("coingecko")

// PriceSource resolves current USD prices for a batch of contracts.
type PriceSource interface {
	FetchPrices(ctx context.Context, addrs []string, chain Chain) map[string]float64
}

// CoinGeckoClient fetches current token prices and keeps the shared
// PriceCache up to date. Failed chunks are skipped, never fatal.
type CoinGeckoClient struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
	Cache      *PriceCache
	Logger     Logger
	ChunkDelay time.Duration
	RetryDelay time.Duration

	clientOnce sync.Once
	cacheOnce  sync.Once
}

// NewCoinGeckoClient builds a client writing into cache.
func NewCoinGeckoClient(cfg Config, cache *PriceCache, logger Logger) *CoinGeckoClient {
	return &CoinGeckoClient{
		APIKey:     cfg.CoinGeckoAPIKey,
		HTTPClient: newUpstreamHTTPClient(cfg.HTTPTimeout, nil),
		Cache:      cache,
		Logger:     logger,
		ChunkDelay: cfg.CoinGeckoChunkDelay,
		RetryDelay: cfg.CoinGeckoRetryDelay,
	}
}

func (c *CoinGeckoClient) logger() Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return coinGeckoLogger
}

func (c *CoinGeckoClient) endpoint() string {
	if c.Endpoint != "" {
		return strings.TrimRight(c.Endpoint, "/")
	}
	return coinGeckoEndpoint
}

func (c *CoinGeckoClient) httpClient() *http.Client {
	c.clientOnce.Do(func() {
		if c.HTTPClient == nil {
			c.HTTPClient = newUpstreamHTTPClient(defaultHTTPTimeout, nil)
		}
	})
	return c.HTTPClient
}

func (c *CoinGeckoClient) priceCache() *PriceCache {
	c.cacheOnce.Do(func() {
		if c.Cache == nil {
			c.Cache = NewPriceCache(Config{})
		}
	})
	return c.Cache
}

func (c *CoinGeckoClient) chunkDelay() time.Duration {
	if c.ChunkDelay > 0 {
		return c.ChunkDelay
	}
	return defaultChunkDelay
}

func (c *CoinGeckoClient) retryDelay() time.Duration {
	if c.RetryDelay > 0 {
		return c.RetryDelay
	}
	return defaultRetryDelay
}

// FetchPrices returns address -> USD for every address that is cached or
// freshly priced. Addresses without a price are absent from the result.
func (c *CoinGeckoClient) FetchPrices(ctx context.Context, addrs []string, chain Chain) map[string]float64 {
	if len(addrs) == 0 {
		return map[string]float64{}
	}
	cache := c.priceCache()

	part := cache.Partition(addrs)
	prices := part.Cached
	c.logger().Printf("price partition chain=%s cached=%d fetch=%d noFeed=%d", chain, len(part.Cached), len(part.ToFetch), len(part.Skipped))
	if len(part.ToFetch) == 0 {
		return prices
	}

	info, ok := LookupChain(chain)
	if !ok {
		return prices
	}

	for start := 0; start < len(part.ToFetch); start += coinGeckoChunkSize {
		end := min(start+coinGeckoChunkSize, len(part.ToFetch))
		chunk := part.ToFetch[start:end]

		quotes, err := c.fetchChunk(ctx, info.CoinGeckoPlatform, chunk)
		if err != nil {
			c.logger().Printf("price chunk warning chain=%s size=%d skipped: %v", chain, len(chunk), err)
		} else {
			hits := 0
			for addr, quote := range quotes {
				if quote.USD == nil {
					continue
				}
				prices[addr] = *quote.USD
				cache.RecordPrice(addr, *quote.USD)
				hits++
			}
			for _, addr := range chunk {
				if _, responded := quotes[addr]; !responded {
					cache.RecordNoFeed(addr)
				}
			}
			c.logger().Printf("price chunk chain=%s size=%d hits=%d", chain, len(chunk), hits)
		}

		if end >= len(part.ToFetch) {
			break
		}
		if err := sleepContext(ctx, c.chunkDelay()); err != nil {
			break
		}
	}

	stats := cache.Stats()
	c.logger().Printf("price cache stats prices=%d noFeed=%d", stats.Prices, stats.NoFeed)
	return prices
}

type coinGeckoQuote struct {
	USD *float64 `json:"usd"`
}

// fetchChunk requests one batch. A 429 is retried once after the retry delay.
func (c *CoinGeckoClient) fetchChunk(ctx context.Context, platform string, chunk []string) (map[string]coinGeckoQuote, error) {
	params := url.Values{}
	params.Set("contract_addresses", strings.Join(chunk, ","))
	params.Set("vs_currencies", "usd")
	if c.APIKey != "" {
		params.Set("x_cg_demo_api_key", c.APIKey)
	}
	target := fmt.Sprintf("%s/simple/token_price/%s?%s", c.endpoint(), url.PathEscape(platform), params.Encode())

	resp, err := c.get(ctx, target)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		c.logger().Printf("price chunk rate limited, retrying in %s", c.retryDelay())
		if err := sleepContext(ctx, c.retryDelay()); err != nil {
			return nil, err
		}
		resp, err = c.get(ctx, target)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("token_price status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raw map[string]coinGeckoQuote
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode token_price: %w", err)
	}
	quotes := make(map[string]coinGeckoQuote, len(raw))
	for addr, quote := range raw {
		quotes[strings.ToLower(addr)] = quote
	}
	return quotes, nil
}

func (c *CoinGeckoClient) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build token_price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-cg-demo-apikey", c.APIKey)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("token_price request: %w", err)
	}
	return resp, nil
}

// sleepContext pauses for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
