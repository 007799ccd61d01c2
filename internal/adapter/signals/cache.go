package signals

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/gaia-diary-service/internal/domain"
)

// Source is the interface CachedSource decorates.
type Source interface {
	Fetch(ctx context.Context, regionID string) (domain.RawSignalSnapshot, error)
}

// CachedSource wraps a Source with an in-memory LRU cache whose entries
// expire after ttl. Upstream "current" values only refresh every few
// minutes, so repeated ingests inside that window reuse one reading.
type CachedSource struct {
	inner Source
	ttl   time.Duration
	clock clockwork.Clock
	cache *lruCache
}

// NewCachedSource creates a cache decorator around a source.
func NewCachedSource(inner Source, maxEntries int, ttl time.Duration, clock clockwork.Clock) *CachedSource {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedSource{
		inner: inner,
		ttl:   ttl,
		clock: clock,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedSource) Fetch(ctx context.Context, regionID string) (domain.RawSignalSnapshot, error) {
	now := c.clock.Now()
	if snap, fetchedAt, ok := c.cache.get(regionID); ok && now.Sub(fetchedAt) < c.ttl {
		return cloneSnapshot(snap), nil
	}
	snap, err := c.inner.Fetch(ctx, regionID)
	if err != nil {
		return snap, err
	}
	// Only complete readings are cached so a missing value is retried.
	if complete(snap) {
		c.cache.put(regionID, cloneSnapshot(snap), now)
	}
	return snap, nil
}

func complete(s domain.RawSignalSnapshot) bool {
	return s.SSTC != nil && s.SSTClimC != nil && s.Chlorophyll != nil && s.PM25 != nil
}

// cloneSnapshot copies the readings so callers never share them with the cache.
func cloneSnapshot(s domain.RawSignalSnapshot) domain.RawSignalSnapshot {
	s.SSTC = clonePtr(s.SSTC)
	s.SSTClimC = clonePtr(s.SSTClimC)
	s.Chlorophyll = clonePtr(s.Chlorophyll)
	s.PM25 = clonePtr(s.PM25)
	s.Sources = slices.Clone(s.Sources)
	return s
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// lruCache is a simple thread-safe LRU cache of snapshots.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	value     domain.RawSignalSnapshot
	fetchedAt time.Time
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.RawSignalSnapshot, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.RawSignalSnapshot{}, time.Time{}, false
	}
	c.moveToFront(e)
	return e.value, e.fetchedAt, true
}

func (c *lruCache) put(key string, value domain.RawSignalSnapshot, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.fetchedAt = fetchedAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, fetchedAt: fetchedAt}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
