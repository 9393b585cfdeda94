// ABOUTME: Process-local TTL cache of recently consumed signatures
// ABOUTME: Fast-path layer in front of the flocked ledger, never a substitute for it

package replay

import (
	"sync"
	"time"
)

// Cache tracks signatures this process has already seen, so repeated
// presentations of the same token are rejected without re-scanning the
// ledger file. Entries expire after the ttl; the cache is capped and sheds
// expired entries opportunistically on insert.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	ttl     time.Duration
	maxSize int
}

// NewCache creates a cache with the given entry TTL and size cap.
func NewCache(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Seen reports whether the signature is present and unexpired.
func (c *Cache) Seen(signature string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.seen[signature]
	return ok && time.Since(at) < c.ttl
}

// Mark records the signature as seen.
func (c *Cache) Mark(signature string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.seen) >= c.maxSize {
		c.evictLocked()
	}
	c.seen[signature] = time.Now()
}

// evictLocked drops expired entries, and if nothing expired, the oldest
// entry. Must be called with mu held.
func (c *Cache) evictLocked() {
	now := time.Now()
	var oldestKey string
	var oldestAt time.Time

	for key, at := range c.seen {
		if now.Sub(at) >= c.ttl {
			delete(c.seen, key)
			continue
		}
		if oldestKey == "" || at.Before(oldestAt) {
			oldestKey, oldestAt = key, at
		}
	}

	if len(c.seen) >= c.maxSize && oldestKey != "" {
		delete(c.seen, oldestKey)
	}
}
