// Package blobstore provides storage abstraction for chunked segment blobs.
//
// A segment is stored as one blob holding its (possibly compressed) chunks back
// to back. Readers never load a whole segment; they issue ranged reads for the
// chunks a request needs.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory store for tests
//   - LocalStore: local filesystem
//   - s3.Store: Amazon S3 with ranged GetObject
//   - minio.Store: MinIO and other S3-compatible stores
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	}
//
//	type Blob interface {
//	    io.Closer
//	    ReadRange(ctx, off, len) (io.ReadCloser, error)
//	    Size() int64
//	}
//
// A missing blob must be reported with an error satisfying
// errors.Is(err, ErrNotFound). Remote stores pin the object version at Open
// and report ErrBlobChanged when it was overwritten since.
package blobstore
