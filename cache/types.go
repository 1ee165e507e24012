package cache

import (
	"context"
	"fmt"
)

// CacheKey identifies one decoded chunk of a segment.
type CacheKey struct {
	Segment string
	ChunkID int
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s#%d", k.Segment, k.ChunkID)
}

// Cache is a byte-oriented cache for immutable decoded chunks.
// Returned slices must be treated as read-only.
type Cache interface {
	// Get returns a cached chunk. ok=false if missing or expired.
	Get(ctx context.Context, key CacheKey) (b []byte, ok bool)
	// Set caches a chunk. Implementations retain b; the caller must treat it as immutable.
	Set(ctx context.Context, key CacheKey, b []byte)
	// Contains reports whether key is cached, without touching recency or stats.
	Contains(key CacheKey) bool
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key CacheKey) bool)
	// Close releases any resources (e.g. background workers).
	Close() error
	// Stats returns cache statistics.
	Stats() Stats
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
	// Size is the number of cached bytes.
	Size    int64
	Entries int
}

func (s Stats) add(o Stats) Stats {
	return Stats{
		Hits:        s.Hits + o.Hits,
		Misses:      s.Misses + o.Misses,
		Evictions:   s.Evictions + o.Evictions,
		Expirations: s.Expirations + o.Expirations,
		Size:        s.Size + o.Size,
		Entries:     s.Entries + o.Entries,
	}
}

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
