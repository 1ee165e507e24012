package chunkstream_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chunkstream"
	"github.com/hupe1980/chunkstream/blobstore"
	"github.com/hupe1980/chunkstream/cache"
	"github.com/hupe1980/chunkstream/fetch"
	"github.com/hupe1980/chunkstream/manifest"
)

// putSegment stores data as zstd chunks of chunkSize bytes together with its
// manifest.
func putSegment(t *testing.T, store *blobstore.MemoryStore, name string, data []byte, chunkSize int) {
	t.Helper()

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()

	var (
		blob        []byte
		original    []int64
		transformed []int64
	)
	for pos := 0; pos < len(data); pos += chunkSize {
		chunk := data[pos:min(pos+chunkSize, len(data))]
		compressed := enc.EncodeAll(chunk, nil)
		blob = append(blob, compressed...)
		original = append(original, int64(len(chunk)))
		transformed = append(transformed, int64(len(compressed)))
	}

	idx, err := manifest.NewVariableSizeIndex(original, transformed)
	require.NoError(t, err)
	m, err := manifest.New(idx, "zstd")
	require.NoError(t, err)
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	store.Put(name, blob)
	store.Put(name+chunkstream.DefaultManifestSuffix, raw)
}

func segmentData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

func readAll(t *testing.T, c *chunkstream.Client, segment string, r fetch.Range) []byte {
	t.Helper()

	rc, err := c.ReadRange(t.Context(), segment, r)
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	return b
}

func TestClient_ReadRange(t *testing.T) {
	store := blobstore.NewMemoryStore()
	data := segmentData(250)
	putSegment(t, store, "seg", data, 100)

	tests := []struct {
		name string
		opts []chunkstream.Option
	}{
		{"plain", nil},
		{"read-ahead", []chunkstream.Option{chunkstream.WithReadAhead(2)}},
		{"cached", []chunkstream.Option{chunkstream.WithCache(cache.Config{})}},
		{"sharded", []chunkstream.Option{chunkstream.WithShardedCache(cache.Config{})}},
		{"limited", []chunkstream.Option{chunkstream.WithResourceLimits(chunkstream.ResourceLimits{
			MaxConcurrentFetches: 1,
			IOBytesPerSec:        1 << 20,
		})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := chunkstream.New(store, tt.opts...)
			require.NoError(t, err)
			defer c.Close()

			assert.Equal(t, data[50:221], readAll(t, c, "seg", fetch.Range{From: 50, To: 220}))
			assert.Equal(t, data[0:100], readAll(t, c, "seg", fetch.Range{From: 0, To: 99}))
			assert.Equal(t, data[240:250], readAll(t, c, "seg", fetch.Range{From: 240, To: 500}))
		})
	}
}

func TestClient_Errors(t *testing.T) {
	store := blobstore.NewMemoryStore()
	putSegment(t, store, "seg", segmentData(250), 100)

	c, err := chunkstream.New(store)
	require.NoError(t, err)

	t.Run("unknown segment", func(t *testing.T) {
		_, err := c.ReadRange(t.Context(), "missing", fetch.Range{From: 0, To: 1})
		var snf *chunkstream.ErrSegmentNotFound
		require.ErrorAs(t, err, &snf)
		assert.Equal(t, "missing", snf.Segment)
		assert.ErrorIs(t, err, manifest.ErrNotFound)
	})

	t.Run("start past end", func(t *testing.T) {
		_, err := c.ReadRange(t.Context(), "seg", fetch.Range{From: 250, To: 260})
		assert.ErrorIs(t, err, chunkstream.ErrInvalidRangeStart)
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := c.ReadRange(t.Context(), "seg", fetch.Range{From: 10, To: 5})
		assert.ErrorIs(t, err, chunkstream.ErrInvalidRange)
	})

	t.Run("missing data blob", func(t *testing.T) {
		store.Put("orphan"+chunkstream.DefaultManifestSuffix, mustManifestJSON(t))
		rc, err := c.ReadRange(t.Context(), "orphan", fetch.Range{From: 0, To: 5})
		require.NoError(t, err)
		defer rc.Close()
		_, err = io.ReadAll(rc)
		assert.ErrorIs(t, err, chunkstream.ErrChunkFetchFailed)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("prefetch without cache", func(t *testing.T) {
		err := c.Prefetch(t.Context(), "seg", fetch.Range{From: 0, To: 1})
		assert.ErrorIs(t, err, chunkstream.ErrCacheDisabled)
	})

	t.Run("closed", func(t *testing.T) {
		require.NoError(t, c.Close())
		require.NoError(t, c.Close())
		_, err := c.ReadRange(t.Context(), "seg", fetch.Range{From: 0, To: 1})
		assert.ErrorIs(t, err, chunkstream.ErrClosed)
	})
}

func mustManifestJSON(t *testing.T) []byte {
	t.Helper()
	idx, err := manifest.NewFixedSizeIndex(10, 10, 10, 10)
	require.NoError(t, err)
	m, err := manifest.New(idx, "none")
	require.NoError(t, err)
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	return raw
}

func TestClient_ManifestIsMemoized(t *testing.T) {
	store := blobstore.NewMemoryStore()
	putSegment(t, store, "seg", segmentData(250), 100)

	c, err := chunkstream.New(store)
	require.NoError(t, err)
	defer c.Close()

	m1, err := c.LoadManifest(t.Context(), "seg")
	require.NoError(t, err)
	m2, err := c.LoadManifest(t.Context(), "seg")
	require.NoError(t, err)

	assert.Same(t, m1, m2)
	assert.Equal(t, 1, store.Opens("seg"+chunkstream.DefaultManifestSuffix))
}

func TestClient_CacheAndPrefetch(t *testing.T) {
	store := blobstore.NewMemoryStore()
	data := segmentData(1000)
	putSegment(t, store, "seg", data, 100)

	cfg, err := cache.NewConfig(map[string]any{cache.SizeKey: 1 << 20})
	require.NoError(t, err)

	metrics := &chunkstream.BasicMetricsCollector{}
	c, err := chunkstream.New(store,
		chunkstream.WithCache(cfg),
		chunkstream.WithPrefetchConcurrency(4),
		chunkstream.WithMetricsCollector(metrics),
		chunkstream.WithLogger(chunkstream.NewLogger(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Prefetch(t.Context(), "seg", fetch.Range{From: 0, To: 999}))
	assert.Equal(t, 10, store.Opens("seg"))

	assert.Equal(t, data[123:877], readAll(t, c, "seg", fetch.Range{From: 123, To: 876}))
	assert.Equal(t, 10, store.Opens("seg"))

	stats, ok := c.CacheStats()
	require.True(t, ok)
	assert.Equal(t, 10, stats.Entries)
	assert.Equal(t, int64(8), stats.Hits)

	got := metrics.GetStats()
	assert.Equal(t, int64(10), got.ChunkFetchCount)
	assert.Equal(t, int64(1), got.PrefetchCount)
	assert.Equal(t, int64(10), got.PrefetchChunks)
	assert.Equal(t, int64(1), got.RangeReadCount)
	assert.Equal(t, int64(754), got.RangeReadBytes)
	assert.Equal(t, int64(8), got.RangeReadChunks)
}

func TestClient_DiskCache(t *testing.T) {
	store := blobstore.NewMemoryStore()
	data := segmentData(300)
	putSegment(t, store, "seg", data, 100)

	dir := t.TempDir()
	bounds, err := cache.NewConfig(nil, cache.WithDefaultSize(-1))
	require.NoError(t, err)

	c, err := chunkstream.New(store, chunkstream.WithDiskCache(dir, bounds))
	require.NoError(t, err)
	assert.Equal(t, data, readAll(t, c, "seg", fetch.Range{From: 0, To: 299}))
	require.NoError(t, c.Close())

	// Disk writes are asynchronous; a new client sees them once flushed.
	require.Eventually(t, func() bool {
		reopened, err := chunkstream.New(store, chunkstream.WithDiskCache(dir, bounds))
		if err != nil {
			return false
		}
		defer reopened.Close()
		stats, _ := reopened.CacheStats()
		return stats.Entries == 3
	}, time.Second, 10*time.Millisecond)
}

func TestClient_ReadRangeCloseStopsReadAhead(t *testing.T) {
	store := blobstore.NewMemoryStore()
	putSegment(t, store, "seg", segmentData(10_000), 100)

	c, err := chunkstream.New(store, chunkstream.WithReadAhead(4))
	require.NoError(t, err)
	defer c.Close()

	before := runtime.NumGoroutine()
	for range 20 {
		rc, err := c.ReadRange(t.Context(), "seg", fetch.Range{From: 0, To: 9_999})
		require.NoError(t, err)
		buf := make([]byte, 150)
		_, err = io.ReadFull(rc, buf)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
	}

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, time.Second, 10*time.Millisecond)
}

func TestClient_ReadRangeLogsDeliveredBytes(t *testing.T) {
	store := blobstore.NewMemoryStore()
	putSegment(t, store, "seg", segmentData(10_000), 100)

	var logs bytes.Buffer
	logger := chunkstream.NewLogger(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c, err := chunkstream.New(store, chunkstream.WithLogger(logger))
	require.NoError(t, err)
	defer c.Close()

	rc, err := c.ReadRange(t.Context(), "seg", fetch.Range{From: 0, To: 9_999})
	require.NoError(t, err)
	_, err = io.ReadFull(rc, make([]byte, 150))
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	var completed map[string]any
	dec := json.NewDecoder(&logs)
	for dec.More() {
		var entry map[string]any
		require.NoError(t, dec.Decode(&entry))
		if entry["msg"] == "range read completed" {
			completed = entry
		}
	}
	require.NotNil(t, completed)
	assert.Equal(t, "150 B", completed["bytes"])
	assert.Equal(t, "[0, 9999]", completed["range"])
}

func TestClient_Sequence(t *testing.T) {
	store := blobstore.NewMemoryStore()
	data := segmentData(250)
	putSegment(t, store, "seg", data, 100)

	c, err := chunkstream.New(store)
	require.NoError(t, err)
	defer c.Close()

	seq, err := c.Sequence(t.Context(), "seg", fetch.Range{From: 50, To: 220})
	require.NoError(t, err)

	var lens []int
	var joined bytes.Buffer
	for rc, err := range seq.All(t.Context()) {
		require.NoError(t, err)
		n, err := io.Copy(&joined, rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		lens = append(lens, int(n))
	}
	assert.Equal(t, []int{50, 100, 21}, lens)
	assert.Equal(t, data[50:221], joined.Bytes())
}
