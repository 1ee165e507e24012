package chunkstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/chunkstream/blobstore"
	"github.com/hupe1980/chunkstream/cache"
	"github.com/hupe1980/chunkstream/fetch"
	"github.com/hupe1980/chunkstream/internal/resource"
	"github.com/hupe1980/chunkstream/manifest"
)

// Client reads byte ranges of chunked segments from a blob store.
//
// Each segment is a blob holding the segment's chunks back to back, next to a
// manifest blob named segment+DefaultManifestSuffix that describes the chunk
// layout and codec. Manifests are immutable and memoized after first load.
//
// A Client is safe for concurrent use. The streams it returns are not.
type Client struct {
	opts      options
	manifests *manifest.Store
	rc        *resource.Controller

	fetcher fetch.ChunkFetcher
	caching *cache.CachingFetcher // nil without cache

	mu     sync.RWMutex
	loaded map[string]*manifest.SegmentManifest

	closed atomic.Bool
}

// New creates a Client over store.
func New(store blobstore.BlobStore, optFns ...Option) (*Client, error) {
	if store == nil {
		return nil, errors.New("chunkstream: store must not be nil")
	}

	o := applyOptions(optFns)

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:     o.limits.MemoryBytes,
		MaxConcurrentFetches: o.limits.MaxConcurrentFetches,
		IOLimitBytesPerSec:   o.limits.IOBytesPerSec,
	})

	c := &Client{
		opts:      o,
		manifests: manifest.NewStore(store),
		rc:        rc,
		loaded:    make(map[string]*manifest.SegmentManifest),
	}

	var fetcher fetch.ChunkFetcher = &instrumentedFetcher{
		next:    fetch.NewBlobFetcher(store, fetch.WithResourceController(rc)),
		logger:  o.logger,
		metrics: o.metricsCollector,
	}

	chunkCache, err := buildCache(o, rc)
	if err != nil {
		return nil, err
	}
	if chunkCache != nil {
		var fetcherOpts []cache.FetcherOption
		if o.prefetchConcurrency > 0 {
			fetcherOpts = append(fetcherOpts, cache.WithPrefetchConcurrency(o.prefetchConcurrency))
		}
		c.caching = cache.NewCachingFetcher(fetcher, chunkCache, fetcherOpts...)
		fetcher = c.caching
	}
	c.fetcher = fetcher

	return c, nil
}

func buildCache(o options, rc *resource.Controller) (cache.Cache, error) {
	ctx := context.Background()

	var mem cache.Cache
	if o.memCache != nil {
		o.logger.LogCacheConfig(ctx, *o.memCache)
		if o.shardedCache {
			mem = cache.NewShardedChunkCache(*o.memCache, cache.WithResourceController(rc))
		} else {
			mem = cache.NewChunkCache(*o.memCache, cache.WithResourceController(rc))
		}
	}

	if o.diskCacheDir == "" {
		return mem, nil
	}

	o.logger.LogCacheConfig(ctx, *o.diskCache)
	disk, err := cache.NewDiskChunkCache(cache.DiskCacheConfig{
		RootDir: o.diskCacheDir,
		Bounds:  *o.diskCache,
	})
	if err != nil {
		return nil, fmt.Errorf("open disk cache: %w", err)
	}
	if mem == nil {
		return disk, nil
	}
	return cache.NewTieredCache(mem, disk), nil
}

// LoadManifest returns the manifest of segment, reading it from the store on
// first use.
func (c *Client) LoadManifest(ctx context.Context, segment string) (*manifest.SegmentManifest, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	c.mu.RLock()
	m, ok := c.loaded[segment]
	c.mu.RUnlock()
	if ok {
		return m, nil
	}

	m, err := c.manifests.Load(ctx, segment+c.opts.manifestSuffix)
	if err != nil {
		return nil, translateError(segment, err)
	}

	c.mu.Lock()
	if existing, ok := c.loaded[segment]; ok {
		m = existing
	} else {
		c.loaded[segment] = m
	}
	c.mu.Unlock()

	return m, nil
}

// Sequence returns the chunk sequence for r over segment. Each element must
// be closed by the caller.
func (c *Client) Sequence(ctx context.Context, segment string, r fetch.Range) (*fetch.Sequence, error) {
	m, err := c.LoadManifest(ctx, segment)
	if err != nil {
		return nil, err
	}
	return fetch.NewSequence(c.fetcher, segment, m, r)
}

// ReadRange returns the bytes [r.From, r.To] of segment as one stream.
// A To past the end of the segment is clamped to its last byte. Chunks are
// fetched as the stream is read; with WithReadAhead they are fetched ahead.
func (c *Client) ReadRange(ctx context.Context, segment string, r fetch.Range) (io.ReadCloser, error) {
	start := time.Now()

	seq, err := c.Sequence(ctx, segment, r)
	if err != nil {
		c.opts.logger.LogRangeRead(ctx, segment, r, 0, 0, time.Since(start), err)
		c.opts.metricsCollector.RecordRangeRead(0, 0, time.Since(start), err)
		return nil, err
	}

	var it fetch.Iterator = seq
	if c.opts.readAhead > 0 {
		it = fetch.NewReadAhead(ctx, seq, c.opts.readAhead)
	}

	return &rangeReader{
		ReadCloser: fetch.NewReader(ctx, it),
		ctx:        ctx,
		client:     c,
		segment:    segment,
		rng:        seq.Range(),
		chunks:     seq.Len(),
		start:      start,
	}, nil
}

// Prefetch loads every chunk covering r into the cache.
func (c *Client) Prefetch(ctx context.Context, segment string, r fetch.Range) error {
	if c.caching == nil {
		return ErrCacheDisabled
	}

	start := time.Now()
	m, err := c.LoadManifest(ctx, segment)
	if err != nil {
		return err
	}

	chunks := 0
	if seq, seqErr := fetch.NewSequence(c.caching, segment, m, r); seqErr == nil {
		chunks = seq.Len()
	}

	err = c.caching.Prefetch(ctx, segment, m, r)
	c.opts.logger.LogPrefetch(ctx, segment, r, err)
	c.opts.metricsCollector.RecordPrefetch(chunks, time.Since(start), err)
	return err
}

// CacheStats returns the chunk cache counters. ok is false without a cache.
func (c *Client) CacheStats() (stats cache.Stats, ok bool) {
	if c.caching == nil {
		return cache.Stats{}, false
	}
	return c.caching.Cache().Stats(), true
}

// Close releases the cache. Streams already handed out stay readable only as
// far as their chunks were fetched.
func (c *Client) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.caching != nil {
		return c.caching.Cache().Close()
	}
	return nil
}

// rangeReader reports a range read to logs and metrics when closed.
type rangeReader struct {
	io.ReadCloser
	ctx     context.Context
	client  *Client
	segment string
	rng     fetch.Range
	chunks  int
	start   time.Time

	read int64
	err  error
	once sync.Once
}

func (r *rangeReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	r.read += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		r.err = err
	}
	return n, err
}

func (r *rangeReader) Close() error {
	err := r.ReadCloser.Close()
	r.once.Do(func() {
		elapsed := time.Since(r.start)
		r.client.opts.logger.LogRangeRead(r.ctx, r.segment, r.rng, r.read, r.chunks, elapsed, r.err)
		r.client.opts.metricsCollector.RecordRangeRead(r.read, r.chunks, elapsed, r.err)
	})
	return err
}

// instrumentedFetcher times backend chunk fetches.
type instrumentedFetcher struct {
	next    fetch.ChunkFetcher
	logger  *Logger
	metrics MetricsCollector
}

func (f *instrumentedFetcher) FetchChunk(ctx context.Context, segment string, m *manifest.SegmentManifest, chunkID int) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := f.next.FetchChunk(ctx, segment, m, chunkID)
	elapsed := time.Since(start)

	f.logger.LogChunkFetch(ctx, segment, chunkID, elapsed, err)
	f.metrics.RecordChunkFetch(elapsed, err)
	return rc, err
}
