package cache

import (
	"context"
	"hash/maphash"
	"sync"
)

const numShards = 16

// ShardedChunkCache spreads entries across shards to reduce lock contention.
// The size bound is divided evenly across shards, so a single chunk larger
// than size/16 bytes is not admitted.
type ShardedChunkCache struct {
	shards [numShards]*ChunkCache
	seed   maphash.Seed
}

// NewShardedChunkCache creates a sharded cache honoring cfg.
func NewShardedChunkCache(cfg Config, opts ...Option) *ShardedChunkCache {
	o := applyOptions(opts)

	shardCfg := cfg
	if size, ok := cfg.Size(); ok {
		shardCfg.size = size / numShards
	}

	s := &ShardedChunkCache{
		seed: maphash.MakeSeed(),
	}
	for i := range numShards {
		s.shards[i] = newChunkCache(shardCfg, o)
	}
	return s
}

func (s *ShardedChunkCache) shard(key CacheKey) *ChunkCache {
	return s.shards[maphash.Comparable(s.seed, key)%numShards]
}

// Get returns a cached chunk.
func (s *ShardedChunkCache) Get(ctx context.Context, key CacheKey) ([]byte, bool) {
	return s.shard(key).Get(ctx, key)
}

// Set caches a chunk.
func (s *ShardedChunkCache) Set(ctx context.Context, key CacheKey, b []byte) {
	s.shard(key).Set(ctx, key, b)
}

// Contains reports whether an unexpired entry exists for key.
func (s *ShardedChunkCache) Contains(key CacheKey) bool {
	return s.shard(key).Contains(key)
}

// Invalidate removes entries matching the predicate.
// This walks every shard, which is expensive but rare.
func (s *ShardedChunkCache) Invalidate(predicate func(key CacheKey) bool) {
	var wg sync.WaitGroup
	wg.Add(numShards)

	for i := range numShards {
		go func(shard *ChunkCache) {
			defer wg.Done()
			shard.Invalidate(predicate)
		}(s.shards[i])
	}

	wg.Wait()
}

// Close closes all shards.
func (s *ShardedChunkCache) Close() error {
	for i := range numShards {
		if err := s.shards[i].Close(); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns counters aggregated over all shards.
func (s *ShardedChunkCache) Stats() Stats {
	var total Stats
	for i := range numShards {
		total = total.add(s.shards[i].Stats())
	}
	return total
}

// ShardStats returns per-shard counters, indexed by shard.
func (s *ShardedChunkCache) ShardStats() []Stats {
	stats := make([]Stats, numShards)
	for i := range numShards {
		stats[i] = s.shards[i].Stats()
	}
	return stats
}
