package cache

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

const chunkFileExt = ".chunk"

// DiskCacheConfig holds configuration for the disk cache.
type DiskCacheConfig struct {
	// RootDir is the directory where chunk files are stored.
	RootDir string
	// Bounds limits total bytes on disk and file age.
	Bounds Config
	// MaxConcurrentWrites limits background disk writes to prevent unbounded goroutines.
	// Defaults to 16 if <= 0.
	MaxConcurrentWrites int64
}

// DiskChunkCache is a Cache backed by the local filesystem, meant as a
// second tier behind a memory cache for remote stores. It keeps an in-memory
// LRU index of the files on disk and rebuilds it from the directory on
// startup, using file modification times as entry ages.
//
// Writes happen in the background; a chunk becomes visible once its file has
// been renamed into place.
type DiskChunkCache struct {
	mu          sync.Mutex
	rootDir     string
	maxSize     int64
	bounded     bool
	retention   time.Duration
	expires     bool
	currentSize int64
	now         func() time.Time

	// writeSem limits concurrent background writes.
	writeSem *semaphore.Weighted
	wg       sync.WaitGroup

	items   map[CacheKey]*diskEntry
	lruHead *diskEntry
	lruTail *diskEntry

	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64
}

type diskEntry struct {
	key        CacheKey
	size       int64
	filePath   string
	storedAt   time.Time
	next, prev *diskEntry
}

// NewDiskChunkCache creates a disk-backed chunk cache and indexes the chunk
// files already present under cfg.RootDir.
func NewDiskChunkCache(cfg DiskCacheConfig, opts ...Option) (*DiskChunkCache, error) {
	if cfg.RootDir == "" {
		return nil, fmt.Errorf("%w: disk cache root dir is empty", ErrInvalidConfiguration)
	}
	if err := os.MkdirAll(cfg.RootDir, 0o755); err != nil {
		return nil, err
	}

	maxWrites := cfg.MaxConcurrentWrites
	if maxWrites <= 0 {
		maxWrites = 16
	}

	o := applyOptions(opts)
	c := &DiskChunkCache{
		rootDir:  cfg.RootDir,
		items:    make(map[CacheKey]*diskEntry),
		writeSem: semaphore.NewWeighted(maxWrites),
		now:      o.now,
	}
	c.maxSize, c.bounded = cfg.Bounds.Size()
	c.retention, c.expires = cfg.Bounds.Retention()

	if err := c.scanExistingFiles(); err != nil {
		return nil, err
	}

	return c, nil
}

// scanExistingFiles indexes root/<escaped segment>/<chunk id>.chunk files,
// oldest first so that recency follows file age.
func (c *DiskChunkCache) scanExistingFiles() error {
	type found struct {
		key  CacheKey
		path string
		info fs.FileInfo
	}
	var files []found

	err := filepath.WalkDir(c.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr // unreadable entries are skipped, not fatal
		}
		key, ok := c.parsePathToKey(path)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr
		}
		files = append(files, found{key: key, path: path, info: info})
		return nil
	})
	if err != nil {
		return err
	}

	slices.SortFunc(files, func(a, b found) int {
		return a.info.ModTime().Compare(b.info.ModTime())
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, f := range files {
		if c.expires && now.Sub(f.info.ModTime()) >= c.retention {
			_ = os.Remove(f.path)
			continue
		}
		c.addToLRU(f.key, f.path, f.info.Size(), f.info.ModTime())
	}
	c.evictOverCapacity(0)
	return nil
}

// encodeKeyToRelPath creates a relative path from a key. Segment names may
// contain separators, so they are path-escaped into a single directory.
func encodeKeyToRelPath(key CacheKey) string {
	return filepath.Join(encodeSegmentDir(key.Segment), fmt.Sprintf("%d%s", key.ChunkID, chunkFileExt))
}

// encodeSegmentDir escapes a segment name into one directory name. A leading
// dot is escaped too, so "." and ".." cannot leave the cache root.
func encodeSegmentDir(segment string) string {
	dir := url.PathEscape(segment)
	if strings.HasPrefix(dir, ".") {
		dir = "%2E" + dir[1:]
	}
	return dir
}

func (c *DiskChunkCache) parsePathToKey(absPath string) (CacheKey, bool) {
	relPath, err := filepath.Rel(c.rootDir, absPath)
	if err != nil {
		return CacheKey{}, false
	}

	dir, file := filepath.Split(relPath)
	dir = strings.TrimSuffix(dir, string(filepath.Separator))
	if dir == "" || strings.ContainsRune(dir, filepath.Separator) || !strings.HasSuffix(file, chunkFileExt) {
		return CacheKey{}, false
	}

	var id int
	if n, err := fmt.Sscanf(strings.TrimSuffix(file, chunkFileExt), "%d", &id); err != nil || n != 1 || id < 0 {
		return CacheKey{}, false
	}

	segment, err := url.PathUnescape(dir)
	if err != nil {
		return CacheKey{}, false
	}

	return CacheKey{Segment: segment, ChunkID: id}, true
}

// Get reads a cached chunk from disk.
func (c *DiskChunkCache) Get(_ context.Context, key CacheKey) ([]byte, bool) {
	c.mu.Lock()
	ent, ok := c.items[key]
	if ok && c.expired(ent, c.now()) {
		c.removeFile(ent)
		c.expirations.Add(1)
		ok = false
	}
	if ok {
		c.moveToFront(ent)
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	data, err := os.ReadFile(ent.filePath)
	if err != nil {
		// File vanished underneath us.
		c.mu.Lock()
		if c.items[key] == ent {
			c.removeEntry(ent)
		}
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

// Contains reports whether an unexpired file is indexed for key.
func (c *DiskChunkCache) Contains(key CacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	return ok && !c.expired(ent, c.now())
}

// Set writes the chunk to disk in the background. Chunks are immutable, so an
// already indexed key is only refreshed in LRU order.
func (c *DiskChunkCache) Set(_ context.Context, key CacheKey, b []byte) {
	c.mu.Lock()
	c.sweep(c.now())

	if ent, ok := c.items[key]; ok {
		c.moveToFront(ent)
		c.mu.Unlock()
		return
	}

	size := int64(len(b))
	if key.Segment == "" || (c.bounded && size > c.maxSize) {
		c.mu.Unlock()
		return
	}
	c.evictOverCapacity(size)
	c.mu.Unlock()

	// Skip caching when too many writes are already in flight.
	if !c.writeSem.TryAcquire(1) {
		return
	}

	absPath := filepath.Join(c.rootDir, encodeKeyToRelPath(key))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.writeSem.Release(1)

		if err := writeFileAtomic(absPath, b); err != nil {
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		if _, ok := c.items[key]; ok {
			return
		}
		// Other writes may have landed meanwhile.
		c.evictOverCapacity(size)
		c.addToLRU(key, absPath, size, c.now())
	}()
}

func writeFileAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), "tmp-chunk-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()

	if _, err := tmpFile.Write(b); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// Invalidate removes the files of entries matching the predicate.
func (c *DiskChunkCache) Invalidate(predicate func(key CacheKey) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*diskEntry
	for k, ent := range c.items {
		if predicate(k) {
			toRemove = append(toRemove, ent)
		}
	}

	for _, ent := range toRemove {
		c.removeFile(ent)
	}
}

// Close waits for all background writes to complete. Files stay on disk.
func (c *DiskChunkCache) Close() error {
	c.wg.Wait()
	return nil
}

// Stats returns the cache counters.
func (c *DiskChunkCache) Stats() Stats {
	c.mu.Lock()
	size, entries := c.currentSize, len(c.items)
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

// Internal LRU helpers (must hold lock)

func (c *DiskChunkCache) expired(ent *diskEntry, now time.Time) bool {
	return c.expires && now.Sub(ent.storedAt) >= c.retention
}

func (c *DiskChunkCache) sweep(now time.Time) {
	if !c.expires {
		return
	}
	var toRemove []*diskEntry
	for _, ent := range c.items {
		if c.expired(ent, now) {
			toRemove = append(toRemove, ent)
		}
	}
	for _, ent := range toRemove {
		c.removeFile(ent)
		c.expirations.Add(1)
	}
}

func (c *DiskChunkCache) evictOverCapacity(incoming int64) {
	for c.bounded && c.currentSize+incoming > c.maxSize && c.lruTail != nil {
		c.removeFile(c.lruTail)
		c.evictions.Add(1)
	}
}

func (c *DiskChunkCache) addToLRU(key CacheKey, path string, size int64, storedAt time.Time) {
	ent := &diskEntry{
		key:      key,
		filePath: path,
		size:     size,
		storedAt: storedAt,
	}
	c.items[key] = ent
	c.currentSize += size

	ent.next = c.lruHead
	if c.lruHead != nil {
		c.lruHead.prev = ent
	}
	c.lruHead = ent
	if c.lruTail == nil {
		c.lruTail = ent
	}
}

func (c *DiskChunkCache) moveToFront(ent *diskEntry) {
	if c.lruHead == ent {
		return
	}

	c.unlink(ent)

	ent.next = c.lruHead
	ent.prev = nil
	if c.lruHead != nil {
		c.lruHead.prev = ent
	}
	c.lruHead = ent
	if c.lruTail == nil {
		c.lruTail = ent
	}
}

func (c *DiskChunkCache) unlink(ent *diskEntry) {
	if ent.prev != nil {
		ent.prev.next = ent.next
	} else {
		c.lruHead = ent.next
	}
	if ent.next != nil {
		ent.next.prev = ent.prev
	} else {
		c.lruTail = ent.prev
	}
	ent.prev, ent.next = nil, nil
}

func (c *DiskChunkCache) removeEntry(ent *diskEntry) {
	c.unlink(ent)
	delete(c.items, ent.key)
	c.currentSize -= ent.size
}

func (c *DiskChunkCache) removeFile(ent *diskEntry) {
	_ = os.Remove(ent.filePath)
	c.removeEntry(ent)
}
