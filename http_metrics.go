package walletpnl

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsTransport records upstream HTTP response codes per host.
type metricsTransport struct {
	Base    http.RoundTripper
	Counter *prometheus.CounterVec
}

func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp != nil {
		incrementResponseCount(t.Counter, resp.StatusCode, req.URL.Hostname())
	}
	return resp, nil
}

// newUpstreamHTTPClient builds the client shared by the price fetchers:
// timeout plus response-code metrics, optionally rate limited.
func newUpstreamHTTPClient(timeout time.Duration, limiter Limiter) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	transport := http.RoundTripper(&metricsTransport{
		Base:    http.DefaultTransport,
		Counter: externalResponseCounts,
	})
	if limiter != nil {
		transport = &RateLimitedTransport{
			Limiter: limiter,
			Base:    transport,
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withResponseMetrics counts every response code served by next.
func withResponseMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		incrementResponseCount(appResponseCounts, rec.status)
	})
}
