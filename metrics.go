package walletpnl

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "walletpnl"

var (
	appResponseCounts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "app_http_responses_total",
		Help:      "Responses served by the wallet API, by status code.",
	}, []string{"code"})

	externalResponseCounts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "external_http_responses_total",
		Help:      "Upstream API responses, by host and status code.",
	}, []string{"host", "code"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "price_cache",
		Name:      "lookups_total",
		Help:      "Price cache partition outcomes (hit, miss, no_feed).",
	}, []string{"result"})

	historyLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "history_cache",
		Name:      "lookups_total",
		Help:      "Historical series cache outcomes (hit, miss).",
	}, []string{"result"})

	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "analyses_total",
		Help:      "Wallet analyses, by chain and outcome.",
	}, []string{"chain", "result"})

	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "analysis_duration_seconds",
		Help:      "Wall time of a full wallet analysis.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"chain"})
)

// registerCacheGauges exposes live cache sizes. Only the first cache
// registered per process is exported; later calls are no-ops.
func registerCacheGauges(cache *PriceCache) {
	if cache == nil {
		return
	}
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "price_cache",
		Name:      "entries",
		Help:      "Live priced entries in the current-price cache.",
	}, func() float64 { return float64(cache.Stats().Prices) })
	noFeed := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "price_cache",
		Name:      "no_feed_entries",
		Help:      "Live no-feed entries in the current-price cache.",
	}, func() float64 { return float64(cache.Stats().NoFeed) })

	_ = prometheus.Register(gauge)
	_ = prometheus.Register(noFeed)
}

func incrementResponseCount(counter *prometheus.CounterVec, code int, labels ...string) {
	if counter == nil {
		return
	}
	values := append(labels, strconv.Itoa(code))
	counter.WithLabelValues(values...).Inc()
}
