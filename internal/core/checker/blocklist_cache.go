package checker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrListUnavailable is returned while a failed list fetch is remembered.
var ErrListUnavailable = errors.New("blocklist unavailable")

// DomainSet is an immutable set of blocklisted domains.
type DomainSet map[string]struct{}

// Has reports exact membership of domain.
func (s DomainSet) Has(domain string) bool {
	_, ok := s[domain]
	return ok
}

// BlocklistCache holds the most recently fetched set per category.
//
// Concurrent lookups for the same category share a single fetch, and a
// category is fetched at most once per freshness window.
type BlocklistCache struct {
	TTL        time.Duration
	FailureTTL time.Duration
	Clock      func() time.Time

	mu      sync.RWMutex
	lists   map[string]cachedList
	group   singleflight.Group
	fetches atomic.Int64
}

type cachedList struct {
	domains   DomainSet
	fetchedAt time.Time
	failed    bool
}

// NewBlocklistCache returns a cache with the given freshness windows.
func NewBlocklistCache(ttl, failureTTL time.Duration) *BlocklistCache {
	return &BlocklistCache{TTL: ttl, FailureTTL: failureTTL}
}

// Get returns the cached set for category, calling load when the cached copy
// is missing or stale.
func (c *BlocklistCache) Get(ctx context.Context, category string, load func(context.Context) (DomainSet, error)) (DomainSet, error) {
	if set, ok, err := c.lookup(category); ok {
		return set, err
	}

	value, err, _ := c.group.Do(category, func() (any, error) {
		if set, ok, err := c.lookup(category); ok {
			return set, err
		}

		c.fetches.Add(1)
		set, err := load(ctx)

		c.mu.Lock()
		if c.lists == nil {
			c.lists = make(map[string]cachedList)
		}
		c.lists[category] = cachedList{domains: set, fetchedAt: c.now(), failed: err != nil}
		c.mu.Unlock()

		return set, err
	})
	if err != nil {
		return nil, err
	}
	return value.(DomainSet), nil
}

// Fetches reports how many loads the cache has performed.
func (c *BlocklistCache) Fetches() int64 {
	return c.fetches.Load()
}

// Invalidate drops every cached list.
func (c *BlocklistCache) Invalidate() {
	c.mu.Lock()
	c.lists = nil
	c.mu.Unlock()
}

func (c *BlocklistCache) lookup(category string) (DomainSet, bool, error) {
	c.mu.RLock()
	entry, ok := c.lists[category]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	age := c.now().Sub(entry.fetchedAt)
	if entry.failed {
		if age < c.FailureTTL {
			return nil, true, ErrListUnavailable
		}
		return nil, false, nil
	}
	if c.TTL > 0 && age >= c.TTL {
		return nil, false, nil
	}
	return entry.domains, true, nil
}

func (c *BlocklistCache) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}
