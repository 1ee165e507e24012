// Package fetch turns a byte range of a chunked segment into an ordered
// sequence of chunk streams.
//
// A Sequence locates the chunks covering [From, To] through the segment's
// manifest, fetches them one at a time through a ChunkFetcher, and trims the
// first and last stream so that the concatenation of all elements is exactly
// the requested bytes:
//
//	seq, err := fetch.NewSequence(fetcher, "segment-0001", m, fetch.Range{From: 50, To: 220})
//	if err != nil {
//		return err
//	}
//	for seq.HasNext() {
//		rc, err := seq.Next(ctx)
//		if err != nil {
//			return err
//		}
//		_, err = io.Copy(w, rc)
//		rc.Close()
//		if err != nil {
//			return err
//		}
//	}
//
// NewReader flattens any Iterator into a single io.ReadCloser, and
// NewReadAhead keeps a bounded number of elements in flight ahead of the
// consumer. BlobFetcher is the ChunkFetcher that reads chunks from a
// blobstore.BlobStore and decodes them with the segment's codec.
package fetch
