package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type cacheEntry struct {
	result  *Result
	address *Address
	expires time.Time
}

// CachedClient memoizes Geocode and Reverse results in memory. Unmatched
// lookups are cached too so repeated misses do not hit the API.
type CachedClient struct {
	next Client
	ttl  time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
	maxSize int
	now     func() time.Time
}

// NewCachedClient wraps next with a cache of at most maxSize entries.
func NewCachedClient(next Client, ttl time.Duration, maxSize int) *CachedClient {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &CachedClient{next: next, ttl: ttl, maxSize: maxSize, entries: make(map[string]cacheEntry), now: time.Now}
}

// Geocode implements Client.
func (c *CachedClient) Geocode(ctx context.Context, query string) (*Result, error) {
	key := queryKey(query)
	if e, ok := c.get(key); ok && e.result != nil {
		return e.result, nil
	}
	r, err := c.next.Geocode(ctx, query)
	if err != nil {
		return nil, err
	}
	c.put(key, cacheEntry{result: r})
	return r, nil
}

// Reverse implements Client. Points are keyed at ~11m resolution.
func (c *CachedClient) Reverse(ctx context.Context, lat, lng float64) (*Address, error) {
	key := fmt.Sprintf("rev:%.4f,%.4f", lat, lng)
	if e, ok := c.get(key); ok && e.address != nil {
		return e.address, nil
	}
	a, err := c.next.Reverse(ctx, lat, lng)
	if err != nil {
		return nil, err
	}
	c.put(key, cacheEntry{address: a})
	return a, nil
}

func (c *CachedClient) get(key string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return cacheEntry{}, false
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		delete(c.entries, key)
		return cacheEntry{}, false
	}
	zap.L().Debug("geocode cache hit", zap.String("key", key[:min(len(key), 12)]))
	return e, true
}

func (c *CachedClient) put(key string, e cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxSize {
		// Drop everything expired; if still full, drop an arbitrary entry.
		now := c.now()
		for k, v := range c.entries {
			if c.ttl > 0 && now.After(v.expires) {
				delete(c.entries, k)
			}
		}
		for k := range c.entries {
			if len(c.entries) < c.maxSize {
				break
			}
			delete(c.entries, k)
		}
	}
	e.expires = c.now().Add(c.ttl)
	c.entries[key] = e
}

// Len returns the number of cached entries.
func (c *CachedClient) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// queryKey returns SHA-256 hex of the normalized query.
func queryKey(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}
