// Package memory implements domain.ResultCache in process memory.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/depthbot/internal/domain"
)

// DefaultTTL is how long an analysis result stays servable.
const DefaultTTL = 60 * time.Second

// Config controls expiry and size.
type Config struct {
	TTL time.Duration
	// MaxEntries bounds the cache; the least recently used entry is evicted
	// first. Zero means unbounded.
	MaxEntries int
	// Now overrides the clock used for expiry. Nil means time.Now.
	Now func() time.Time
}

type entry struct {
	key       string
	result    domain.AnalysisResult
	expiresAt time.Time
}

// Cache is a mutex-guarded expiring map with optional LRU eviction.
// Concurrent writers of the same key resolve last-writer-wins.
type Cache struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

var _ domain.ResultCache = (*Cache)(nil)

// New creates an empty Cache.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Cache{
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		now:        cfg.Now,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Get returns the entry for (symbol, depth) if it has not expired. Expired
// entries are removed on the way out.
func (c *Cache) Get(_ context.Context, symbol domain.Symbol, depth domain.DepthPercent) (domain.AnalysisResult, time.Time, bool, error) {
	key := domain.CacheKey(symbol, depth)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.AnalysisResult{}, time.Time{}, false, nil
	}
	e := el.Value.(*entry)
	if !c.now().Before(e.expiresAt) {
		c.removeElement(el)
		return domain.AnalysisResult{}, time.Time{}, false, nil
	}
	c.order.MoveToFront(el)
	return e.result, e.expiresAt, true, nil
}

// Put stores result with a fresh TTL, replacing any previous entry.
func (c *Cache) Put(_ context.Context, symbol domain.Symbol, depth domain.DepthPercent, result domain.AnalysisResult) error {
	key := domain.CacheKey(symbol, depth)
	expiresAt := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.result = result
		e.expiresAt = expiresAt
		c.order.MoveToFront(el)
		return nil
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, result: result, expiresAt: expiresAt})
	if c.maxEntries > 0 {
		for c.order.Len() > c.maxEntries {
			c.removeElement(c.order.Back())
		}
	}
	return nil
}

// Sweep drops every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if !now.Before(el.Value.(*entry).expiresAt) {
			c.removeElement(el)
			removed++
		}
		el = next
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (c *Cache) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = c.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*entry).key)
}
