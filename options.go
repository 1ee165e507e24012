package chunkstream

import (
	"log/slog"

	"github.com/hupe1980/chunkstream/cache"
)

// DefaultManifestSuffix is appended to a segment name to locate its manifest.
const DefaultManifestSuffix = ".manifest.json"

// ResourceLimits bounds what a Client may consume. Zero fields are unlimited.
type ResourceLimits struct {
	// MemoryBytes caps the bytes held by the memory chunk cache.
	MemoryBytes int64
	// MaxConcurrentFetches caps chunk fetches in flight against the store.
	MaxConcurrentFetches int64
	// IOBytesPerSec caps store read throughput.
	IOBytesPerSec int64
}

type options struct {
	memCache            *cache.Config
	shardedCache        bool
	diskCacheDir        string
	diskCache           *cache.Config
	limits              ResourceLimits
	readAhead           int
	prefetchConcurrency int
	manifestSuffix      string
	metricsCollector    MetricsCollector
	logger              *Logger
}

// Option configures a Client.
type Option func(*options)

// WithCache puts a memory chunk cache bounded by cfg in front of the store.
//
// Example:
//
//	cfg, _ := cache.NewConfig(map[string]any{"size": 256 << 20})
//	c, _ := chunkstream.New(store, chunkstream.WithCache(cfg))
func WithCache(cfg cache.Config) Option {
	return func(o *options) {
		o.memCache = &cfg
		o.shardedCache = false
	}
}

// WithShardedCache is WithCache with the cache split across shards, for
// many concurrent readers. Each shard gets an equal share of the size bound.
func WithShardedCache(cfg cache.Config) Option {
	return func(o *options) {
		o.memCache = &cfg
		o.shardedCache = true
	}
}

// WithDiskCache keeps decoded chunks under dir, bounded by cfg. Combined with
// WithCache the disk cache becomes the second tier.
func WithDiskCache(dir string, cfg cache.Config) Option {
	return func(o *options) {
		o.diskCacheDir = dir
		o.diskCache = &cfg
	}
}

// WithResourceLimits bounds cache memory, concurrent fetches and IO throughput.
func WithResourceLimits(limits ResourceLimits) Option {
	return func(o *options) {
		o.limits = limits
	}
}

// WithReadAhead fetches up to depth chunks ahead of the consumer in
// ReadRange. depth <= 0 disables read-ahead.
func WithReadAhead(depth int) Option {
	return func(o *options) {
		o.readAhead = depth
	}
}

// WithPrefetchConcurrency bounds the parallel fetches issued by Prefetch.
func WithPrefetchConcurrency(n int) Option {
	return func(o *options) {
		o.prefetchConcurrency = n
	}
}

// WithManifestSuffix changes the suffix appended to a segment name to locate
// its manifest. Defaults to DefaultManifestSuffix.
func WithManifestSuffix(suffix string) Option {
	return func(o *options) {
		o.manifestSuffix = suffix
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &chunkstream.BasicMetricsCollector{}
//	c, _ := chunkstream.New(store, chunkstream.WithMetricsCollector(metrics))
//	// ... use c ...
//	stats := metrics.GetStats()
//	fmt.Printf("Fetches: %d, Avg latency: %dns\n", stats.ChunkFetchCount, stats.ChunkFetchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := chunkstream.NewJSONLogger(slog.LevelInfo)
//	c, _ := chunkstream.New(store, chunkstream.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		manifestSuffix:   DefaultManifestSuffix,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
