package cache

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitIndexed waits for the background write of key to land.
func waitIndexed(t *testing.T, c *DiskChunkCache, key CacheKey) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Contains(key) }, time.Second, time.Millisecond)
}

func TestDiskChunkCache(t *testing.T) {
	tmpDir := t.TempDir()
	c, err := NewDiskChunkCache(DiskCacheConfig{RootDir: tmpDir, Bounds: mustConfig(t, 1024, -1)})
	require.NoError(t, err)
	defer c.Close()

	ctx := t.Context()
	key1 := CacheKey{Segment: "topic/partition-0/segment-1", ChunkID: 0}
	data1 := make([]byte, 400)

	c.Set(ctx, key1, data1)
	waitIndexed(t, c, key1)

	relPath := encodeKeyToRelPath(key1)
	assert.FileExists(t, filepath.Join(tmpDir, relPath))

	got, ok := c.Get(ctx, key1)
	assert.True(t, ok)
	assert.Len(t, got, len(data1))

	key2 := CacheKey{Segment: key1.Segment, ChunkID: 1}
	key3 := CacheKey{Segment: key1.Segment, ChunkID: 2}
	c.Set(ctx, key2, make([]byte, 400))
	waitIndexed(t, c, key2)
	c.Set(ctx, key3, make([]byte, 400))
	waitIndexed(t, c, key3)

	// 1200 bytes > 1024: key1 is the least recently used.
	_, ok = c.Get(ctx, key1)
	assert.False(t, ok)
	assert.NoFileExists(t, filepath.Join(tmpDir, relPath))

	_, ok = c.Get(ctx, key2)
	assert.True(t, ok)
	_, ok = c.Get(ctx, key3)
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestDiskChunkCache_Reload(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := DiskCacheConfig{RootDir: tmpDir, Bounds: mustConfig(t, 10000, -1)}
	key1 := CacheKey{Segment: "a/b", ChunkID: 7}

	c, err := NewDiskChunkCache(cfg)
	require.NoError(t, err)
	c.Set(t.Context(), key1, []byte("hello"))
	require.NoError(t, c.Close())

	reopened, err := NewDiskChunkCache(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.Get(t.Context(), key1)
	assert.True(t, ok)
	assert.Equal(t, "hello", string(got))
	assert.Equal(t, int64(5), reopened.Stats().Size)
}

func TestDiskChunkCache_Retention(t *testing.T) {
	clock := newFakeClock()
	c, err := NewDiskChunkCache(DiskCacheConfig{RootDir: t.TempDir(), Bounds: mustConfig(t, -1, 1000)}, WithClock(clock.Now))
	require.NoError(t, err)
	defer c.Close()

	k := CacheKey{Segment: "seg", ChunkID: 0}
	c.Set(t.Context(), k, []byte("data"))
	waitIndexed(t, c, k)

	clock.Advance(time.Second)
	_, ok := c.Get(t.Context(), k)
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Expirations)
}

func TestDiskChunkCache_ParsePath(t *testing.T) {
	c := &DiskChunkCache{rootDir: "/cache"}

	k := CacheKey{Segment: "x/y z", ChunkID: 12}
	got, ok := c.parsePathToKey(filepath.Join("/cache", encodeKeyToRelPath(k)))
	require.True(t, ok)
	assert.Equal(t, k, got)

	for _, p := range []string{"/cache/12.chunk", "/cache/seg/tmp-chunk-1", "/cache/seg/x.chunk", "/cache/a/b/1.chunk"} {
		_, ok := c.parsePathToKey(p)
		assert.False(t, ok, p)
	}
}

func TestTieredCache(t *testing.T) {
	ctx := t.Context()
	l1 := NewChunkCache(mustConfig(t, -1, -1))
	l2, err := NewDiskChunkCache(DiskCacheConfig{RootDir: t.TempDir(), Bounds: mustConfig(t, -1, -1)})
	require.NoError(t, err)

	tc := NewTieredCache(l1, l2)
	defer tc.Close()

	k := CacheKey{Segment: "seg", ChunkID: 3}
	tc.Set(ctx, k, []byte("chunk"))
	waitIndexed(t, l2, k)

	// Drop from memory; the disk tier serves and promotes it.
	l1.Invalidate(func(CacheKey) bool { return true })
	assert.True(t, tc.Contains(k))

	got, ok := tc.Get(ctx, k)
	require.True(t, ok)
	assert.Equal(t, "chunk", string(got))
	assert.True(t, l1.Contains(k))

	_, ok = tc.Get(ctx, CacheKey{Segment: "seg", ChunkID: 4})
	assert.False(t, ok)

	stats := tc.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestDiskChunkCache_DotSegments(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "cache")
	cfg := DiskCacheConfig{RootDir: root, Bounds: mustConfig(t, -1, -1)}

	c, err := NewDiskChunkCache(cfg)
	require.NoError(t, err)

	keys := []CacheKey{
		{Segment: "..", ChunkID: 0},
		{Segment: ".", ChunkID: 1},
		{Segment: ".hidden", ChunkID: 2},
		{Segment: "../escape", ChunkID: 3},
	}
	for _, k := range keys {
		rel := encodeKeyToRelPath(k)
		assert.False(t, strings.HasPrefix(rel, "."), rel)

		c.Set(t.Context(), k, []byte(k.Segment))
		waitIndexed(t, c, k)
	}

	// Empty segment names have no directory to live in.
	c.Set(t.Context(), CacheKey{Segment: "", ChunkID: 9}, []byte("x"))
	require.NoError(t, c.Close())
	assert.NoFileExists(t, filepath.Join(root, "9.chunk"))

	assert.NoFileExists(t, filepath.Join(parent, "0.chunk"))
	assert.NoFileExists(t, filepath.Join(parent, "escape", "3.chunk"))

	reopened, err := NewDiskChunkCache(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	for _, k := range keys {
		got, ok := reopened.Get(t.Context(), k)
		require.True(t, ok, k.String())
		assert.Equal(t, k.Segment, string(got))
	}
}
