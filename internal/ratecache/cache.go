// Package ratecache memoizes rate lookups for the lifetime of the process and
// collapses concurrent identical requests into one call to the rate client.
package ratecache

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Client resolves a base currency against a set of target symbols.
type Client interface {
	GetRates(ctx context.Context, base string, symbols []string) (map[string]float64, error)
}

// Cache is a process-wide rate memo. TTL is the persistent store's concern, not the cache's.
type Cache struct {
	client  Client
	verbose bool

	group singleflight.Group

	mu      sync.Mutex
	results map[string]map[string]float64
}

// New creates a Cache in front of client.
func New(client Client, verbose bool) *Cache {
	return &Cache{
		client:  client,
		verbose: verbose,
		results: make(map[string]map[string]float64),
	}
}

// Key builds the cache key: base, a colon, then the sorted targets joined by commas.
func Key(base string, targets []string) string {
	sorted := append([]string(nil), targets...)
	sort.Strings(sorted)
	return base + ":" + strings.Join(sorted, ",")
}

// GetRates returns the rates for (base, targets), issuing at most one client
// call per key at a time. Failed lookups are not remembered, so the next call retries.
// The returned map is shared and must not be modified.
func (c *Cache) GetRates(ctx context.Context, base string, targets []string) (map[string]float64, error) {
	key := Key(base, targets)
	if rates, ok := c.lookup(key); ok {
		return rates, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		if rates, ok := c.lookup(key); ok {
			return rates, nil
		}
		if c.verbose {
			log.Printf("[RATES] Requesting %s", key)
		}
		// The flight is shared, so one caller giving up must not fail the others.
		rates, err := c.client.GetRates(context.WithoutCancel(ctx), base, targets)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.results[key] = rates
		c.mu.Unlock()
		return rates, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if c.verbose {
				log.Printf("[RATES] Lookup %s failed: %v", key, res.Err)
			}
			return nil, fmt.Errorf("rates for %s: %w", key, res.Err)
		}
		return res.Val.(map[string]float64), nil
	}
}

// Forget drops a memoized result.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	delete(c.results, key)
	c.mu.Unlock()
}

// Len returns the number of memoized results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func (c *Cache) lookup(key string) (map[string]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rates, ok := c.results[key]
	return rates, ok
}
