// Package manifest describes how a segment is split into chunks.
//
// # Chunk Index
//
// A segment's original bytes are cut into contiguous chunks numbered from 0.
// Each chunk is stored transformed (possibly compressed) and back to back in
// the segment blob. The ChunkIndex maps an original byte offset to the chunk
// covering it:
//
//   - FixedSizeIndex: equal-sized chunks, O(1) lookup
//   - VariableSizeIndex: arbitrary chunk sizes, O(log n) lookup
//
// An offset outside the segment is reported with ok=false, not an error;
// callers decide whether that is fatal.
//
// # Manifest Format
//
// Manifests are JSON documents:
//
//	{
//	  "version": 1,
//	  "compression": "zstd",
//	  "chunkIndex": {
//	    "type": "fixed",
//	    "originalChunkSize": 4194304,
//	    "originalFileSize": 10485760,
//	    "transformedChunkSize": 1048576,
//	    "finalTransformedChunkSize": 524288
//	  }
//	}
//
// Variable indexes list "originalSizes" and "transformedSizes" instead.
// Fixed transformed sizes only make sense without compression or with
// padded chunks; compressed segments normally use a variable index.
package manifest
