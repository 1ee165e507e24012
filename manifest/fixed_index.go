package manifest

import "fmt"

// FixedSizeIndex is a ChunkIndex where every chunk but the last has the same
// original and transformed size. Lookups are O(1).
type FixedSizeIndex struct {
	originalChunkSize         int64
	originalFileSize          int64
	transformedChunkSize      int64
	finalTransformedChunkSize int64
	chunks                    []Chunk
}

// NewFixedSizeIndex creates an index for a segment of originalFileSize bytes
// split into chunks of originalChunkSize bytes. Stored chunks are
// transformedChunkSize bytes each, except the last which is
// finalTransformedChunkSize bytes.
func NewFixedSizeIndex(originalChunkSize, originalFileSize, transformedChunkSize, finalTransformedChunkSize int64) (*FixedSizeIndex, error) {
	if originalChunkSize <= 0 {
		return nil, fmt.Errorf("%w: original chunk size must be positive, got %d", ErrInvalidIndex, originalChunkSize)
	}
	if originalFileSize < 0 {
		return nil, fmt.Errorf("%w: original file size must not be negative, got %d", ErrInvalidIndex, originalFileSize)
	}

	count := int((originalFileSize + originalChunkSize - 1) / originalChunkSize)
	if count > 0 && (transformedChunkSize <= 0 || finalTransformedChunkSize <= 0) {
		return nil, fmt.Errorf("%w: transformed chunk sizes must be positive", ErrInvalidIndex)
	}

	chunks := make([]Chunk, count)
	for i := range chunks {
		pos := int64(i) * originalChunkSize
		size := originalChunkSize
		tSize := transformedChunkSize
		if i == count-1 {
			size = originalFileSize - pos
			tSize = finalTransformedChunkSize
		}
		chunks[i] = Chunk{
			ID:                  i,
			OriginalPosition:    pos,
			OriginalSize:        size,
			TransformedPosition: int64(i) * transformedChunkSize,
			TransformedSize:     tSize,
		}
	}

	return &FixedSizeIndex{
		originalChunkSize:         originalChunkSize,
		originalFileSize:          originalFileSize,
		transformedChunkSize:      transformedChunkSize,
		finalTransformedChunkSize: finalTransformedChunkSize,
		chunks:                    chunks,
	}, nil
}

// FindChunkForOriginalOffset implements ChunkIndex.
func (x *FixedSizeIndex) FindChunkForOriginalOffset(pos int64) (Chunk, bool) {
	if pos < 0 || pos >= x.originalFileSize {
		return Chunk{}, false
	}
	return x.chunks[pos/x.originalChunkSize], true
}

// Chunks implements ChunkIndex.
func (x *FixedSizeIndex) Chunks() []Chunk { return x.chunks }

// Len implements ChunkIndex.
func (x *FixedSizeIndex) Len() int { return len(x.chunks) }
