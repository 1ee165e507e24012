package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hupe1980/chunkstream/blobstore"
	"github.com/hupe1980/chunkstream/internal/resource"
	"github.com/hupe1980/chunkstream/manifest"
)

// BlobFetcher reads chunks straight from the segment's blob.
//
// Each FetchChunk issues one ranged read over the chunk's transformed bytes
// and decodes them with the manifest's codec. The segment name is used as the
// blob name.
type BlobFetcher struct {
	store blobstore.BlobStore
	rc    *resource.Controller
}

// BlobFetcherOption configures a BlobFetcher.
type BlobFetcherOption func(*BlobFetcher)

// WithResourceController bounds concurrent fetches and IO throughput.
func WithResourceController(rc *resource.Controller) BlobFetcherOption {
	return func(f *BlobFetcher) {
		f.rc = rc
	}
}

// NewBlobFetcher creates a fetcher over store.
func NewBlobFetcher(store blobstore.BlobStore, opts ...BlobFetcherOption) *BlobFetcher {
	f := &BlobFetcher{store: store}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchChunk implements ChunkFetcher.
func (f *BlobFetcher) FetchChunk(ctx context.Context, segment string, m *manifest.SegmentManifest, chunkID int) (io.ReadCloser, error) {
	chunks := m.ChunkIndex().Chunks()
	if chunkID < 0 || chunkID >= len(chunks) {
		return nil, fmt.Errorf("chunk %d out of range [0,%d)", chunkID, len(chunks))
	}
	chunk := chunks[chunkID]

	if err := f.rc.AcquireFetch(ctx); err != nil {
		return nil, err
	}

	rc, err := f.open(ctx, segment, m, chunk)
	if err != nil {
		f.rc.ReleaseFetch()
		return nil, err
	}
	return rc, nil
}

func (f *BlobFetcher) open(ctx context.Context, segment string, m *manifest.SegmentManifest, chunk manifest.Chunk) (io.ReadCloser, error) {
	if err := f.rc.AcquireIO(ctx, chunk.TransformedSize); err != nil {
		return nil, err
	}

	blob, err := f.store.Open(ctx, segment)
	if err != nil {
		return nil, err
	}

	if end := chunk.TransformedPosition + chunk.TransformedSize; end > blob.Size() {
		_ = blob.Close()
		return nil, fmt.Errorf("chunk %d ends at %d beyond blob size %d: %w", chunk.ID, end, blob.Size(), io.ErrUnexpectedEOF)
	}

	body, err := blob.ReadRange(ctx, chunk.TransformedPosition, chunk.TransformedSize)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}

	dec, err := m.Codec().NewReader(body)
	if err != nil {
		_ = body.Close()
		_ = blob.Close()
		return nil, fmt.Errorf("decode chunk %d: %w", chunk.ID, err)
	}

	return &blobChunk{
		ReadCloser: dec,
		body:       body,
		blob:       blob,
		release:    f.rc.ReleaseFetch,
	}, nil
}

// blobChunk owns the decoder, the ranged body and the blob handle of one
// fetched chunk, and holds a fetch slot until closed.
type blobChunk struct {
	io.ReadCloser
	body    io.Closer
	blob    io.Closer
	release func()
	once    sync.Once
}

func (c *blobChunk) Close() error {
	var err error
	c.once.Do(func() {
		err = errors.Join(c.ReadCloser.Close(), c.body.Close(), c.blob.Close())
		c.release()
	})
	return err
}
