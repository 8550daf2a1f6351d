package cache

import (
	"sort"
	"sync"
	"time"
	"unicode/utf16"
)

const (
	DefaultTTL = 6 * time.Hour

	// MaxEntries caps the cache. Inserting a new key at capacity first evicts
	// the oldest entries until only MaxEntries-EvictionSlack remain.
	MaxEntries    = 500
	EvictionSlack = 50

	MaxKeyLength     = 100
	MaxSummaryLength = 5000
)

// Clock returns the current time. Tests swap it for a fake.
type Clock func() time.Time

type key struct {
	id    string
	style string
}

type entry struct {
	summary string
	ts      time.Time
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Entries   int    `json:"entries"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Expired   uint64 `json:"expired"`
}

// Cache holds generated summaries keyed by article ID and style.
// It is safe for concurrent use; every operation, including the sweep and
// eviction that precede an insert, runs under a single lock.
type Cache struct {
	mu       sync.Mutex
	items    map[key]entry
	ttl      time.Duration
	capacity int
	slack    int
	now      Clock
	stats    Stats
}

type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(cc *Cache) {
		if c != nil {
			cc.now = c
		}
	}
}

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCapacity overrides the entry cap and how far below it eviction goes.
func WithCapacity(capacity, slack int) Option {
	return func(c *Cache) {
		if capacity <= 0 {
			return
		}
		if slack < 0 || slack >= capacity {
			slack = 0
		}
		c.capacity = capacity
		c.slack = slack
	}
}

// New creates an empty summary cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		items:    make(map[key]entry),
		ttl:      DefaultTTL,
		capacity: MaxEntries,
		slack:    EvictionSlack,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the cached summary for (id, style) if it is younger than
// the TTL. Expired entries are swept before the lookup.
func (c *Cache) Lookup(id, style string) (string, bool, error) {
	if err := validateKey(id, style); err != nil {
		return "", false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)

	e, ok := c.items[key{id, style}]
	if ok && now.Sub(e.ts) < c.ttl {
		c.stats.Hits++
		return e.summary, true, nil
	}
	c.stats.Misses++
	return "", false, nil
}

// Store records a summary for (id, style), replacing any previous value.
// Invalid input leaves the cache untouched.
func (c *Cache) Store(id, style, summary string) error {
	if err := validateEntry(id, style, summary); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)

	k := key{id, style}
	if _, exists := c.items[k]; !exists && len(c.items) >= c.capacity {
		c.evictLocked(c.capacity - c.slack)
	}
	c.items[k] = entry{summary: summary, ts: now}
	return nil
}

// SweepExpired drops every entry older than the TTL and returns how many
// were removed.
func (c *Cache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.items)
	return s
}

func (c *Cache) sweepLocked(now time.Time) int {
	removed := 0
	for k, e := range c.items {
		if now.Sub(e.ts) > c.ttl {
			delete(c.items, k)
			removed++
		}
	}
	c.stats.Expired += uint64(removed)
	return removed
}

// evictLocked removes the oldest entries until target remain.
func (c *Cache) evictLocked(target int) {
	excess := len(c.items) - target
	if excess <= 0 {
		return
	}

	keys := make([]key, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := c.items[keys[i]], c.items[keys[j]]
		if !a.ts.Equal(b.ts) {
			return a.ts.Before(b.ts)
		}
		if keys[i].id != keys[j].id {
			return keys[i].id < keys[j].id
		}
		return keys[i].style < keys[j].style
	})

	for _, k := range keys[:excess] {
		delete(c.items, k)
	}
	c.stats.Evictions += uint64(excess)
}

// textLen counts UTF-16 code units, the length browser clients measure,
// so a character outside the BMP counts twice.
func textLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
