package cache

import (
	"context"
	"errors"
)

// TieredCache checks a fast cache before a slower one and promotes hits from
// the slower tier. Sets go to both tiers.
type TieredCache struct {
	l1 Cache
	l2 Cache
}

// NewTieredCache layers l1 (usually memory) in front of l2 (usually disk).
func NewTieredCache(l1, l2 Cache) *TieredCache {
	return &TieredCache{l1: l1, l2: l2}
}

// Get returns a chunk from the first tier that has it.
func (t *TieredCache) Get(ctx context.Context, key CacheKey) ([]byte, bool) {
	if b, ok := t.l1.Get(ctx, key); ok {
		return b, true
	}
	b, ok := t.l2.Get(ctx, key)
	if ok {
		t.l1.Set(ctx, key, b)
	}
	return b, ok
}

// Set caches the chunk in both tiers.
func (t *TieredCache) Set(ctx context.Context, key CacheKey, b []byte) {
	t.l1.Set(ctx, key, b)
	t.l2.Set(ctx, key, b)
}

// Contains reports whether either tier holds key.
func (t *TieredCache) Contains(key CacheKey) bool {
	return t.l1.Contains(key) || t.l2.Contains(key)
}

// Invalidate removes matching entries from both tiers.
func (t *TieredCache) Invalidate(predicate func(key CacheKey) bool) {
	t.l1.Invalidate(predicate)
	t.l2.Invalidate(predicate)
}

// Close closes both tiers.
func (t *TieredCache) Close() error {
	return errors.Join(t.l1.Close(), t.l2.Close())
}

// Stats counts a lookup as a hit if either tier served it. Size and Entries
// are the first tier's.
func (t *TieredCache) Stats() Stats {
	s1, s2 := t.l1.Stats(), t.l2.Stats()
	s1.Hits += s2.Hits
	s1.Misses = s2.Misses
	s1.Evictions += s2.Evictions
	s1.Expirations += s2.Expirations
	return s1
}
