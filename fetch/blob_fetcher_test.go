package fetch

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chunkstream/blobstore"
	"github.com/hupe1980/chunkstream/internal/resource"
	"github.com/hupe1980/chunkstream/manifest"
)

func encodeChunk(t *testing.T, compression string, data []byte) []byte {
	t.Helper()

	switch compression {
	case "zstd":
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		defer enc.Close()
		return enc.EncodeAll(data, nil)
	case "lz4":
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		_, err := zw.Write(data)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return buf.Bytes()
	default:
		return append([]byte(nil), data...)
	}
}

// storeSegment encodes data in chunks of the given original sizes, writes the
// blob to store and returns the matching manifest.
func storeSegment(t *testing.T, store *blobstore.MemoryStore, name, compression string, data []byte, sizes ...int64) *manifest.SegmentManifest {
	t.Helper()

	var (
		blob        []byte
		transformed []int64
		pos         int64
	)
	for _, size := range sizes {
		enc := encodeChunk(t, compression, data[pos:pos+size])
		blob = append(blob, enc...)
		transformed = append(transformed, int64(len(enc)))
		pos += size
	}
	require.Equal(t, int64(len(data)), pos)

	idx, err := manifest.NewVariableSizeIndex(sizes, transformed)
	require.NoError(t, err)
	m, err := manifest.New(idx, compression)
	require.NoError(t, err)

	store.Put(name, blob)
	return m
}

func TestBlobFetcher_Codecs(t *testing.T) {
	_, data := testSegment(t, 100, 100, 50)

	for _, compression := range []string{"none", "zstd", "lz4"} {
		t.Run(compression, func(t *testing.T) {
			store := blobstore.NewMemoryStore()
			m := storeSegment(t, store, "seg", compression, data, 100, 100, 50)
			f := NewBlobFetcher(store)

			for _, c := range m.ChunkIndex().Chunks() {
				rc, err := f.FetchChunk(t.Context(), "seg", m, c.ID)
				require.NoError(t, err)
				got, err := io.ReadAll(rc)
				require.NoError(t, err)
				require.NoError(t, rc.Close())
				assert.Equal(t, data[c.OriginalPosition:c.OriginalEnd()], got)
			}

			r, err := NewRangeReader(t.Context(), f, "seg", m, Range{From: 50, To: 220})
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, data[50:221], got)
		})
	}
}

func TestBlobFetcher_Errors(t *testing.T) {
	_, data := testSegment(t, 100, 100, 50)
	store := blobstore.NewMemoryStore()
	m := storeSegment(t, store, "seg", "none", data, 100, 100, 50)
	f := NewBlobFetcher(store)

	t.Run("missing blob", func(t *testing.T) {
		_, err := f.FetchChunk(t.Context(), "other", m, 0)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("chunk out of range", func(t *testing.T) {
		_, err := f.FetchChunk(t.Context(), "seg", m, 3)
		assert.Error(t, err)
	})

	t.Run("short blob", func(t *testing.T) {
		store.Put("short", data[:150])
		_, err := f.FetchChunk(t.Context(), "short", m, 2)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("surfaces through sequence", func(t *testing.T) {
		seq, err := NewSequence(f, "other", m, Range{From: 0, To: 10})
		require.NoError(t, err)
		_, err = seq.Next(t.Context())
		assert.ErrorIs(t, err, ErrChunkFetchFailed)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}

func TestBlobFetcher_ReleasesFetchSlot(t *testing.T) {
	_, data := testSegment(t, 100, 100, 50)
	store := blobstore.NewMemoryStore()
	m := storeSegment(t, store, "seg", "none", data, 100, 100, 50)

	rc := resource.NewController(resource.Config{MaxConcurrentFetches: 1})
	f := NewBlobFetcher(store, WithResourceController(rc))

	chunk, err := f.FetchChunk(t.Context(), "seg", m, 0)
	require.NoError(t, err)
	assert.False(t, rc.TryAcquireFetch())

	require.NoError(t, chunk.Close())
	require.NoError(t, chunk.Close())
	assert.True(t, rc.TryAcquireFetch())
	rc.ReleaseFetch()

	// A failed fetch gives its slot back.
	_, err = f.FetchChunk(t.Context(), "missing", m, 0)
	require.Error(t, err)
	assert.True(t, rc.TryAcquireFetch())
}
