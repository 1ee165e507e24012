package fetch

import (
	"context"
	"io"

	"github.com/hupe1980/chunkstream/manifest"
)

// ChunkFetcher retrieves the decoded bytes of one chunk.
//
// The returned reader yields the chunk's original bytes from its start and must
// be closed by the caller. Implementations must be safe for concurrent use.
type ChunkFetcher interface {
	FetchChunk(ctx context.Context, segment string, m *manifest.SegmentManifest, chunkID int) (io.ReadCloser, error)
}

// ChunkFetcherFunc adapts a function to ChunkFetcher.
type ChunkFetcherFunc func(ctx context.Context, segment string, m *manifest.SegmentManifest, chunkID int) (io.ReadCloser, error)

// FetchChunk calls f.
func (f ChunkFetcherFunc) FetchChunk(ctx context.Context, segment string, m *manifest.SegmentManifest, chunkID int) (io.ReadCloser, error) {
	return f(ctx, segment, m, chunkID)
}

// Iterator is a forward-only sequence of chunk streams.
type Iterator interface {
	HasNext() bool
	Next(ctx context.Context) (io.ReadCloser, error)
}
