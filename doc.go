// Package chunkstream reads byte ranges of segments that are stored as
// sequences of independently fetchable, optionally compressed chunks.
//
// A segment is one blob in a blob store (local directory, S3, MinIO) holding
// its chunks back to back, plus a JSON manifest describing where each chunk
// lives in the original and in the stored byte space. Given an inclusive
// range [From, To] of original bytes, chunkstream fetches only the chunks
// that intersect it, one at a time, and trims the first and last so the
// result is exactly the requested bytes.
//
// # Quick Start
//
//	ctx := context.Background()
//	c, _ := chunkstream.New(blobstore.NewLocalStore("./segments"))
//	defer c.Close()
//
//	rc, _ := c.ReadRange(ctx, "orders-00042", fetch.Range{From: 4096, To: 8191})
//	defer rc.Close()
//	io.Copy(os.Stdout, rc)
//
// # Caching
//
// Decoded chunks can be kept in a memory cache, a disk cache, or both. Cache
// bounds come from a string-keyed mapping:
//
//	cfg, _ := cache.NewConfig(map[string]any{"size": 256 << 20, "retention.ms": 300000})
//	c, _ := chunkstream.New(store,
//	    chunkstream.WithCache(cfg),
//	    chunkstream.WithReadAhead(2),
//	)
//	_ = c.Prefetch(ctx, "orders-00042", fetch.Range{From: 0, To: 1 << 20})
//
// # Lower-level API
//
// The fetch package exposes the chunk sequence itself (fetch.NewSequence) for
// callers that want per-chunk streams, and the manifest package the chunk
// index types.
package chunkstream
