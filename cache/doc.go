// Package cache provides bounded caching for decoded chunks.
//
// # Configuration
//
// A Config carries an optional size bound and an optional retention bound.
// It is built from a string-keyed mapping, typically a section of a YAML
// file:
//
//	cfg, err := cache.NewConfig(map[string]any{
//		cache.SizeKey:      64 << 20,
//		cache.RetentionKey: 300000,
//	})
//
// -1 disables a bound. RetentionKey defaults to ten minutes; SizeKey has no
// default unless the caller supplies one with WithDefaultSize.
//
// # Caches
//
// ChunkCache is a byte-bounded LRU with age-based expiry. ShardedChunkCache
// splits the same contract across 16 shards for concurrent readers.
// DiskChunkCache persists chunks on local disk and TieredCache layers a
// memory cache in front of it.
//
// CachingFetcher puts any Cache in front of a fetch.ChunkFetcher, collapsing
// concurrent misses and warming whole ranges with Prefetch.
package cache
