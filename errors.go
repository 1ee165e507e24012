package chunkstream

import (
	"errors"
	"fmt"

	"github.com/hupe1980/chunkstream/blobstore"
	"github.com/hupe1980/chunkstream/cache"
	"github.com/hupe1980/chunkstream/fetch"
	"github.com/hupe1980/chunkstream/manifest"
)

var (
	// ErrClosed is returned by operations on a closed Client.
	ErrClosed = errors.New("client is closed")

	// ErrCacheDisabled is returned by Prefetch when no cache is configured.
	ErrCacheDisabled = errors.New("chunk cache is disabled")

	// Errors re-exported so callers need not import the sub-packages.
	ErrInvalidRange                 = fetch.ErrInvalidRange
	ErrInvalidRangeStart            = fetch.ErrInvalidRangeStart
	ErrChunkFetchFailed             = fetch.ErrChunkFetchFailed
	ErrSequenceExhausted            = fetch.ErrSequenceExhausted
	ErrInvalidConfiguration         = cache.ErrInvalidConfiguration
	ErrMissingRequiredConfiguration = cache.ErrMissingRequiredConfiguration
)

// ErrSegmentNotFound indicates that a segment's manifest does not exist.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrSegmentNotFound struct {
	Segment string
	cause   error
}

func (e *ErrSegmentNotFound) Error() string {
	return fmt.Sprintf("segment not found: %s", e.Segment)
}

func (e *ErrSegmentNotFound) Unwrap() error { return e.cause }

func translateError(segment string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, manifest.ErrNotFound) || errors.Is(err, blobstore.ErrNotFound) {
		var snf *ErrSegmentNotFound
		if errors.As(err, &snf) {
			return err
		}
		return &ErrSegmentNotFound{Segment: segment, cause: err}
	}

	return err
}
