package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange is returned for negative or inverted byte ranges.
	ErrInvalidRange = errors.New("invalid byte range")

	// ErrInvalidRangeStart matches *InvalidRangeStartError.
	ErrInvalidRangeStart = errors.New("invalid range start")

	// ErrChunkFetchFailed matches *ChunkFetchError.
	ErrChunkFetchFailed = errors.New("chunk fetch failed")

	// ErrSequenceExhausted is returned by Next when no elements remain.
	// It signals a caller bug, not a runtime condition.
	ErrSequenceExhausted = errors.New("sequence exhausted")
)

// InvalidRangeStartError indicates that no chunk covers the requested start
// offset. It is returned before any chunk is fetched.
type InvalidRangeStartError struct {
	Segment  string
	Position int64
}

func (e *InvalidRangeStartError) Error() string {
	return fmt.Sprintf("invalid start position %d in segment %s", e.Position, e.Segment)
}

// Is makes errors.Is(err, ErrInvalidRangeStart) hold.
func (e *InvalidRangeStartError) Is(target error) bool {
	return target == ErrInvalidRangeStart
}

// ChunkFetchError wraps a backend failure while retrieving one chunk.
// Elements produced before the failure have already been handed out.
//
// The original underlying error can be accessed via errors.Unwrap.
type ChunkFetchError struct {
	Segment string
	ChunkID int
	cause   error
}

func (e *ChunkFetchError) Error() string {
	return fmt.Sprintf("failed to fetch chunk %d of segment %s: %v", e.ChunkID, e.Segment, e.cause)
}

func (e *ChunkFetchError) Unwrap() error { return e.cause }

// Is makes errors.Is(err, ErrChunkFetchFailed) hold.
func (e *ChunkFetchError) Is(target error) bool {
	return target == ErrChunkFetchFailed
}
