package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
)

var (
	// ErrNotFound is returned when a blob does not exist.
	//
	// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
	// The default maps to `os.ErrNotExist`.
	ErrNotFound = os.ErrNotExist

	// ErrBlobChanged is returned by ReadRange when the stored object was
	// replaced after Open. Segments are immutable, so this means the reader
	// would otherwise mix bytes of two versions.
	ErrBlobChanged = errors.New("blob changed since open")
)

// BlobStore is an abstraction for accessing immutable data blobs (segments, manifests).
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
}

// Blob is a read-only handle to one version of a data blob.
type Blob interface {
	io.Closer

	// ReadRange returns a reader for length bytes starting at off.
	// The range is truncated at the end of the blob; a range starting at or
	// past the end yields an empty reader.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)

	// Size returns the size of the blob in bytes.
	Size() int64
}

// ReadAll reads the whole blob into memory.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	if b.Size() == 0 {
		return []byte{}, nil
	}

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	return io.ReadAll(rc)
}

// ClampRange bounds [off, off+length) to a blob of the given size and returns
// the inclusive last byte. ok is false when nothing remains to read.
func ClampRange(size, off, length int64) (last int64, ok bool) {
	if off < 0 || length <= 0 || off >= size {
		return 0, false
	}
	return min(off+length, size) - 1, true
}

// EmptyReader is returned for ranges that select no bytes.
func EmptyReader() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(nil))
}
