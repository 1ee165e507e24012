package manifest

import "fmt"

// Chunk describes one independently fetchable unit of a segment.
//
// Original positions address the logical (decoded) byte space of the segment;
// transformed positions address the stored blob.
type Chunk struct {
	ID                  int
	OriginalPosition    int64
	OriginalSize        int64
	TransformedPosition int64
	TransformedSize     int64
}

// OriginalEnd returns the exclusive end of the chunk in original byte space.
func (c Chunk) OriginalEnd() int64 {
	return c.OriginalPosition + c.OriginalSize
}

// Contains reports whether the original offset pos falls inside the chunk.
func (c Chunk) Contains(pos int64) bool {
	return pos >= c.OriginalPosition && pos < c.OriginalEnd()
}

func (c Chunk) String() string {
	return fmt.Sprintf("Chunk(id=%d, original=%d+%d, transformed=%d+%d)",
		c.ID, c.OriginalPosition, c.OriginalSize, c.TransformedPosition, c.TransformedSize)
}

// ChunkIndex is a read-only, ordered lookup over the chunks of one segment.
//
// Chunks are contiguous and non-overlapping in original byte space and are
// numbered 0..Len()-1 in that order. Implementations are immutable and safe
// for concurrent use.
type ChunkIndex interface {
	// FindChunkForOriginalOffset returns the chunk covering pos.
	// ok is false when pos is negative or at/after the end of the last chunk.
	FindChunkForOriginalOffset(pos int64) (c Chunk, ok bool)

	// Chunks returns all chunks ordered by ID. The slice must not be modified.
	Chunks() []Chunk

	// Len returns the number of chunks.
	Len() int
}

// OriginalSize returns the size of the segment in original byte space.
func OriginalSize(idx ChunkIndex) int64 {
	chunks := idx.Chunks()
	if len(chunks) == 0 {
		return 0
	}
	return chunks[len(chunks)-1].OriginalEnd()
}
