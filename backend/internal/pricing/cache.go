package pricing

import (
	"sync"
	"time"

	"github.com/user/papercex/backend/internal/models"
)

// DefaultCacheTTL is how long a fetched price counts as fresh.
const DefaultCacheTTL = 5 * time.Minute

// Cache holds the most recent quote per symbol.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]models.TokenPrice
}

// NewCache creates a cache whose entries are fresh for ttl.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]models.TokenPrice),
	}
}

// Put stores p, stamping it with the current time when unset.
func (c *Cache) Put(p models.TokenPrice) {
	p.Symbol = Canonical(p.Symbol)
	if p.FetchedAt.IsZero() {
		p.FetchedAt = c.now()
	}
	c.mu.Lock()
	c.entries[p.Symbol] = p
	c.mu.Unlock()
}

// Get returns the cached quote regardless of age.
func (c *Cache) Get(symbol string) (models.TokenPrice, bool) {
	c.mu.RLock()
	p, ok := c.entries[Canonical(symbol)]
	c.mu.RUnlock()
	return p, ok
}

// Fresh returns the cached quote only if it is younger than the TTL.
func (c *Cache) Fresh(symbol string) (models.TokenPrice, bool) {
	p, ok := c.Get(symbol)
	if !ok || c.now().Sub(p.FetchedAt) >= c.ttl {
		return models.TokenPrice{}, false
	}
	return p, true
}

// Len reports the number of cached symbols.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
