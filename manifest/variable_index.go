package manifest

import (
	"fmt"
	"sort"
)

// VariableSizeIndex is a ChunkIndex over chunks of arbitrary sizes.
// Lookups binary search the chunk start offsets.
type VariableSizeIndex struct {
	chunks []Chunk
}

// NewVariableSizeIndex creates an index from per-chunk original and
// transformed sizes, in chunk order.
func NewVariableSizeIndex(originalSizes, transformedSizes []int64) (*VariableSizeIndex, error) {
	if len(originalSizes) != len(transformedSizes) {
		return nil, fmt.Errorf("%w: %d original sizes but %d transformed sizes",
			ErrInvalidIndex, len(originalSizes), len(transformedSizes))
	}

	chunks := make([]Chunk, len(originalSizes))
	var pos, tPos int64
	for i := range originalSizes {
		if originalSizes[i] <= 0 || transformedSizes[i] <= 0 {
			return nil, fmt.Errorf("%w: chunk %d has non-positive size", ErrInvalidIndex, i)
		}
		chunks[i] = Chunk{
			ID:                  i,
			OriginalPosition:    pos,
			OriginalSize:        originalSizes[i],
			TransformedPosition: tPos,
			TransformedSize:     transformedSizes[i],
		}
		pos += originalSizes[i]
		tPos += transformedSizes[i]
	}

	return &VariableSizeIndex{chunks: chunks}, nil
}

// FindChunkForOriginalOffset implements ChunkIndex.
func (x *VariableSizeIndex) FindChunkForOriginalOffset(pos int64) (Chunk, bool) {
	if pos < 0 || len(x.chunks) == 0 || pos >= x.chunks[len(x.chunks)-1].OriginalEnd() {
		return Chunk{}, false
	}
	// First chunk ending after pos.
	i := sort.Search(len(x.chunks), func(i int) bool {
		return x.chunks[i].OriginalEnd() > pos
	})
	return x.chunks[i], true
}

// Chunks implements ChunkIndex.
func (x *VariableSizeIndex) Chunks() []Chunk { return x.chunks }

// Len implements ChunkIndex.
func (x *VariableSizeIndex) Len() int { return len(x.chunks) }

func (x *VariableSizeIndex) originalSizes() []int64 {
	sizes := make([]int64, len(x.chunks))
	for i, c := range x.chunks {
		sizes[i] = c.OriginalSize
	}
	return sizes
}

func (x *VariableSizeIndex) transformedSizes() []int64 {
	sizes := make([]int64, len(x.chunks))
	for i, c := range x.chunks {
		sizes[i] = c.TransformedSize
	}
	return sizes
}
