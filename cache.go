package walletpnl

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// ttlCache is a bounded LRU whose entries expire a fixed ttl after they were
// written. Expired entries are dropped lazily on read and on PurgeExpired.
type ttlCache[V any] struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	store *lru.Cache[string, cacheEntry[V]]
}

func newTTLCache[V any](maxEntries int, ttl time.Duration) *ttlCache[V] {
	if maxEntries <= 0 {
		return nil
	}
	store, err := lru.New[string, cacheEntry[V]](maxEntries)
	if err != nil {
		return nil
	}
	return &ttlCache[V]{
		ttl:   ttl,
		now:   time.Now,
		store: store,
	}
}

func (c *ttlCache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil || key == "" {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.store.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(entry.expiresAt) {
		c.store.Remove(key)
		return zero, false
	}
	return entry.value, true
}

func (c *ttlCache[V]) Add(key string, value V) {
	if c == nil || key == "" {
		return
	}
	c.mu.Lock()
	c.store.Add(key, cacheEntry[V]{value: value, expiresAt: c.now().Add(c.ttl)})
	c.mu.Unlock()
}

func (c *ttlCache[V]) Remove(key string) {
	if c == nil || key == "" {
		return
	}
	c.mu.Lock()
	c.store.Remove(key)
	c.mu.Unlock()
}

// PurgeExpired drops every expired entry and returns the live entry count.
func (c *ttlCache[V]) PurgeExpired() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, key := range c.store.Keys() {
		entry, ok := c.store.Peek(key)
		if !ok {
			continue
		}
		if now.After(entry.expiresAt) {
			c.store.Remove(key)
		}
	}
	return c.store.Len()
}
