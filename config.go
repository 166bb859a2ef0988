package walletpnl

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	explorerIntervalEnv     = "WALLETPNL_EXPLORER_INTERVAL"
	httpTimeoutEnv          = "WALLETPNL_HTTP_TIMEOUT"
	priceTTLEnv             = "WALLETPNL_CACHE_PRICE_TTL"
	noFeedTTLEnv            = "WALLETPNL_CACHE_NO_FEED_TTL"
	historyTTLEnv           = "WALLETPNL_CACHE_HISTORY_TTL"
	priceMaxEntriesEnv      = "WALLETPNL_CACHE_PRICE_MAX_ENTRIES"
	noFeedMaxEntriesEnv     = "WALLETPNL_CACHE_NO_FEED_MAX_ENTRIES"
	historyMaxEntriesEnv    = "WALLETPNL_CACHE_HISTORY_MAX_ENTRIES"
	historyWorkersEnv       = "WALLETPNL_HISTORY_WORKERS"
	coinGeckoChunkDelayEnv  = "WALLETPNL_COINGECKO_CHUNK_DELAY"
	coinGeckoRetryDelayEnv  = "WALLETPNL_COINGECKO_RETRY_DELAY"
	defaultListenAddr       = ":8080"
	defaultPriceMaxEntries  = 20000
	defaultNoFeedMaxEntries = 50000
	defaultHistoryMax       = 5000
)

// Config carries every tunable of the service. Zero values fall back to the
// package defaults when passed to the constructors.
type Config struct {
	ListenAddr      string
	EtherscanAPIKey string
	CoinGeckoAPIKey string

	ExplorerInterval time.Duration
	HTTPTimeout      time.Duration

	PriceTTL          time.Duration
	NoFeedTTL         time.Duration
	HistoryTTL        time.Duration
	PriceMaxEntries   int
	NoFeedMaxEntries  int
	HistoryMaxEntries int

	HistoryWorkers      int
	CoinGeckoChunkDelay time.Duration
	CoinGeckoRetryDelay time.Duration
}

// LoadConfig reads the configuration from the environment. Only the Etherscan
// key is mandatory.
func LoadConfig() (Config, error) {
	cfg := Config{
		ListenAddr:      loadStringEnv(ListenAddrEnv, defaultListenAddr),
		EtherscanAPIKey: strings.TrimSpace(os.Getenv(EtherscanAPIKeyEnv)),
		CoinGeckoAPIKey: strings.TrimSpace(os.Getenv(CoinGeckoAPIKeyEnv)),

		ExplorerInterval: loadDurationEnv(explorerIntervalEnv, defaultExplorerInterval),
		HTTPTimeout:      loadDurationEnv(httpTimeoutEnv, defaultHTTPTimeout),

		PriceTTL:          loadDurationEnv(priceTTLEnv, defaultPriceTTL),
		NoFeedTTL:         loadDurationEnv(noFeedTTLEnv, defaultNoFeedTTL),
		HistoryTTL:        loadDurationEnv(historyTTLEnv, defaultHistoryTTL),
		PriceMaxEntries:   loadIntEnv(priceMaxEntriesEnv, defaultPriceMaxEntries),
		NoFeedMaxEntries:  loadIntEnv(noFeedMaxEntriesEnv, defaultNoFeedMaxEntries),
		HistoryMaxEntries: loadIntEnv(historyMaxEntriesEnv, defaultHistoryMax),

		HistoryWorkers:      loadIntEnv(historyWorkersEnv, defaultHistoryWorkers),
		CoinGeckoChunkDelay: loadDurationEnv(coinGeckoChunkDelayEnv, defaultChunkDelay),
		CoinGeckoRetryDelay: loadDurationEnv(coinGeckoRetryDelayEnv, defaultRetryDelay),
	}
	if cfg.EtherscanAPIKey == "" {
		return cfg, fmt.Errorf("%s is required: %w", EtherscanAPIKeyEnv, ErrInvalidCredentials)
	}
	return cfg, nil
}

func loadStringEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func loadIntEnv(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	num, err := strconv.Atoi(value)
	if err != nil || num < 0 {
		return fallback
	}
	return num
}

func loadDurationEnv(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	dur, err := time.ParseDuration(value)
	if err != nil || dur < 0 {
		return fallback
	}
	return dur
}
