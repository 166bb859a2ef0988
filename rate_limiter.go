package walletpnl

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const defaultExplorerInterval = 210 * time.Millisecond // ≤5 req/sec

// Limiter is a minimal interface implemented by rate limiters.
type Limiter interface {
	Wait(ctx context.Context) error
}

// IntervalLimiter spaces the starts of permitted calls at least interval apart,
// across every goroutine sharing it. Callers are served in the order they
// reached Wait.
type IntervalLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewIntervalLimiter constructs a limiter with the given minimum spacing.
func NewIntervalLimiter(interval time.Duration) *IntervalLimiter {
	if interval <= 0 {
		panic("interval must be positive")
	}
	return &IntervalLimiter{
		interval: interval,
	}
}

// Wait blocks until the caller's slot arrives or the context is cancelled.
// A cancelled caller forfeits its slot; later slots are not moved forward.
func (l *IntervalLimiter) Wait(ctx context.Context) error {
	slot := l.reserve()

	delay := time.Until(slot)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// reserve hands out the next free slot. Slots are strictly increasing and
// interval apart, so grants keep reservation order.
func (l *IntervalLimiter) reserve() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval)
	return slot
}

// RateLimitedTransport wraps a RoundTripper with a limiter.
type RateLimitedTransport struct {
	Limiter Limiter
	Base    http.RoundTripper
}

// RoundTrip waits for the limiter before delegating to the base transport.
func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return t.base().RoundTrip(req)
}

func (t *RateLimitedTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

var (
	defaultLimiterRegistry = newLimiterRegistry()
	rateLimitIntervals     = map[string]time.Duration{
		etherscanHost: defaultExplorerInterval,
	}
)

type limiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]Limiter
}

func newLimiterRegistry() *limiterRegistry {
	return &limiterRegistry{
		limiters: make(map[string]Limiter),
	}
}

func (r *limiterRegistry) get(key string, factory func() Limiter) Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limiter, ok := r.limiters[key]; ok {
		return limiter
	}
	limiter := factory()
	if limiter != nil {
		r.limiters[key] = limiter
	}
	return limiter
}

// limiterForEndpoint returns the process-wide limiter of the endpoint's host,
// or nil when the host is not throttled.
func limiterForEndpoint(endpoint string) Limiter {
	host := hostFromEndpoint(endpoint)
	if host == "" {
		return nil
	}
	interval, ok := rateLimitIntervals[host]
	if !ok {
		return nil
	}
	return defaultLimiterRegistry.get(host, func() Limiter {
		return NewIntervalLimiter(interval)
	})
}

func hostFromEndpoint(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
