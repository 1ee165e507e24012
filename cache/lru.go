package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/chunkstream/internal/resource"
)

// Option configures a cache.
type Option func(*options)

type options struct {
	rc  *resource.Controller
	now func() time.Time
}

// WithResourceController accounts cached bytes against rc's memory budget.
// Entries that the controller refuses are not cached.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithClock replaces time.Now for retention checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ChunkCache is an LRU Cache bounded by total bytes and entry age, as
// described by a Config.
//
// When a Set would push the cache over its size bound, the least recently
// used entries are evicted first. Entries older than the retention bound are
// dropped on lookup and swept on every Set, regardless of size pressure.
// A chunk larger than the size bound is never admitted.
type ChunkCache struct {
	mu sync.Mutex

	capacity  int64
	bounded   bool
	retention time.Duration
	expires   bool

	size      int64
	items     map[CacheKey]*list.Element
	evictList *list.List // front is most recently used
	ageList   *list.List // front is oldest
	rc        *resource.Controller
	now       func() time.Time

	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64
}

type entry struct {
	key      CacheKey
	value    []byte
	storedAt time.Time
	age      *list.Element
}

// NewChunkCache creates a cache honoring cfg.
func NewChunkCache(cfg Config, opts ...Option) *ChunkCache {
	return newChunkCache(cfg, applyOptions(opts))
}

func newChunkCache(cfg Config, o options) *ChunkCache {
	c := &ChunkCache{
		items:     make(map[CacheKey]*list.Element),
		evictList: list.New(),
		ageList:   list.New(),
		rc:        o.rc,
		now:       o.now,
	}
	c.capacity, c.bounded = cfg.Size()
	c.retention, c.expires = cfg.Retention()
	return c
}

// Get returns a cached chunk.
func (c *ChunkCache) Get(_ context.Context, key CacheKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry)
		if c.expired(ent, c.now()) {
			c.removeElement(el)
			c.expirations.Add(1)
			c.misses.Add(1)
			return nil, false
		}
		c.hits.Add(1)
		c.evictList.MoveToFront(el)
		return ent.value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Contains reports whether an unexpired entry exists for key.
func (c *ChunkCache) Contains(key CacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	return ok && !c.expired(el.Value.(*entry), c.now())
}

// Set caches a chunk.
func (c *ChunkCache) Set(_ context.Context, key CacheKey, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweep(now)

	itemSize := int64(len(b))

	if el, ok := c.items[key]; ok {
		// Replacing frees the old bytes before the new ones are admitted.
		c.removeElement(el)
	}

	// If item is larger than capacity, don't cache
	if c.bounded && itemSize > c.capacity {
		return
	}

	// Evict to make space in local capacity first so the controller gets
	// those bytes back before we ask for more.
	for c.bounded && c.size+itemSize > c.capacity {
		el := c.evictList.Back()
		if el == nil {
			break
		}
		c.removeElement(el)
		c.evictions.Add(1)
	}

	if c.rc != nil && !c.rc.TryAcquireMemory(itemSize) {
		return
	}

	ent := &entry{key: key, value: b, storedAt: now}
	ent.age = c.ageList.PushBack(ent)
	c.items[key] = c.evictList.PushFront(ent)
	c.size += itemSize
}

// Invalidate removes entries matching the predicate.
func (c *ChunkCache) Invalidate(predicate func(key CacheKey) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Collect first; removeElement mutates the lists.
	var toRemove []*list.Element
	for key, el := range c.items {
		if predicate(key) {
			toRemove = append(toRemove, el)
		}
	}

	for _, el := range toRemove {
		c.removeElement(el)
	}
}

// Close drops every entry and returns its bytes to the resource controller.
func (c *ChunkCache) Close() error {
	c.Invalidate(func(CacheKey) bool { return true })
	return nil
}

// Stats returns the cache counters.
func (c *ChunkCache) Stats() Stats {
	c.mu.Lock()
	size, entries := c.size, len(c.items)
	c.mu.Unlock()

	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Size:        size,
		Entries:     entries,
	}
}

// Size returns the current size of the cache in bytes.
func (c *ChunkCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *ChunkCache) expired(ent *entry, now time.Time) bool {
	return c.expires && now.Sub(ent.storedAt) >= c.retention
}

// sweep drops expired entries, oldest first. Must hold c.mu.
func (c *ChunkCache) sweep(now time.Time) {
	if !c.expires {
		return
	}
	for {
		front := c.ageList.Front()
		if front == nil {
			return
		}
		ent := front.Value.(*entry)
		if !c.expired(ent, now) {
			return
		}
		c.removeElement(c.items[ent.key])
		c.expirations.Add(1)
	}
}

func (c *ChunkCache) removeElement(el *list.Element) {
	c.evictList.Remove(el)
	ent := el.Value.(*entry)
	c.ageList.Remove(ent.age)
	delete(c.items, ent.key)
	itemSize := int64(len(ent.value))
	c.size -= itemSize
	if c.rc != nil {
		c.rc.ReleaseMemory(itemSize)
	}
}
