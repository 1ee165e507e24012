package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/hupe1980/chunkstream/manifest"
)

// Sequence produces the chunk streams covering a byte range, one chunk per
// Next call, with the first and last stream trimmed to the range boundaries.
//
// The span of chunks is computed eagerly by NewSequence; chunk content is
// fetched lazily. Reading every element in order yields exactly the requested
// bytes. A Sequence is single-pass and not safe for concurrent use.
type Sequence struct {
	fetcher  ChunkFetcher
	segment  string
	manifest *manifest.SegmentManifest
	chunks   []manifest.Chunk
	rng      Range

	startChunkID   int
	lastChunkID    int
	currentChunkID int
	err            error
}

// NewSequence computes the chunk span for r over the segment described by m.
//
// It fails with *InvalidRangeStartError when no chunk covers r.From. A To past
// the end of the segment is clamped to the segment's last byte.
func NewSequence(fetcher ChunkFetcher, segment string, m *manifest.SegmentManifest, r Range) (*Sequence, error) {
	if fetcher == nil {
		return nil, errors.New("fetch: fetcher must not be nil")
	}
	if m == nil || m.ChunkIndex() == nil {
		return nil, errors.New("fetch: manifest must have a chunk index")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	idx := m.ChunkIndex()

	first, ok := idx.FindChunkForOriginalOffset(r.From)
	if !ok {
		return nil, &InvalidRangeStartError{Segment: segment, Position: r.From}
	}

	chunks := idx.Chunks()
	last, ok := idx.FindChunkForOriginalOffset(r.To)
	if !ok {
		last = chunks[len(chunks)-1]
		r.To = last.OriginalEnd() - 1
	}

	return &Sequence{
		fetcher:        fetcher,
		segment:        segment,
		manifest:       m,
		chunks:         chunks,
		rng:            r,
		startChunkID:   first.ID,
		lastChunkID:    last.ID,
		currentChunkID: first.ID,
	}, nil
}

// Range returns the effective range after clamping To to the segment end.
func (s *Sequence) Range() Range {
	return s.rng
}

// Span returns the inclusive chunk ID span.
func (s *Sequence) Span() (startChunkID, lastChunkID int) {
	return s.startChunkID, s.lastChunkID
}

// Len returns the total number of elements the sequence produces.
func (s *Sequence) Len() int {
	return s.lastChunkID - s.startChunkID + 1
}

// HasNext reports whether Next will produce another element.
// It is false after a fetch failure.
func (s *Sequence) HasNext() bool {
	return s.err == nil && s.currentChunkID <= s.lastChunkID
}

// Next fetches and trims the next chunk. The caller must close the returned
// stream.
//
// A backend failure is returned as *ChunkFetchError and ends the sequence;
// later calls return the same error. Calling Next on a finished sequence
// returns ErrSequenceExhausted.
func (s *Sequence) Next(ctx context.Context) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	if !s.HasNext() {
		return nil, ErrSequenceExhausted
	}

	id := s.currentChunkID
	chunk := s.chunks[id]

	content, err := s.fetcher.FetchChunk(ctx, s.segment, s.manifest, id)
	if err != nil {
		return nil, s.fail(id, err)
	}

	start := chunk.OriginalPosition
	if id == s.startChunkID {
		if err := skip(content, s.rng.From-start); err != nil {
			_ = content.Close()
			return nil, s.fail(id, err)
		}
		start = s.rng.From
	}
	end := chunk.OriginalEnd() - 1
	if id == s.lastChunkID {
		end = s.rng.To
	}

	// Every element is bounded, so a chunk shorter than its index entry
	// fails instead of shifting the bytes that follow it.
	content = &exactReader{rc: content, remaining: end - start + 1, segment: s.segment, chunkID: id}

	s.currentChunkID++
	return content, nil
}

// All returns an iterator over the remaining elements. Iteration stops after
// the first error. Elements must be closed by the consumer.
func (s *Sequence) All(ctx context.Context) iter.Seq2[io.ReadCloser, error] {
	return func(yield func(io.ReadCloser, error) bool) {
		for s.HasNext() {
			rc, err := s.Next(ctx)
			if !yield(rc, err) || err != nil {
				return
			}
		}
	}
}

func (s *Sequence) fail(chunkID int, cause error) error {
	s.err = &ChunkFetchError{Segment: s.segment, ChunkID: chunkID, cause: cause}
	return s.err
}

// skip advances r by n bytes, seeking when r supports it. Seeking past the
// end is allowed by most seekers, so the remaining length is checked first.
func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if seeker, ok := r.(io.Seeker); ok {
		return seekSkip(seeker, n)
	}
	skipped, err := io.CopyN(io.Discard, r, n)
	if errors.Is(err, io.EOF) {
		return shortSkip(skipped, n)
	}
	return err
}

func seekSkip(s io.Seeker, n int64) error {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if end-cur < n {
		return shortSkip(end-cur, n)
	}
	_, err = s.Seek(cur+n, io.SeekStart)
	return err
}

func shortSkip(skipped, n int64) error {
	return fmt.Errorf("chunk ended after %d of %d skipped bytes: %w", skipped, n, io.ErrUnexpectedEOF)
}

// exactReader bounds a chunk stream to remaining bytes and reports a chunk
// that ends early as a *ChunkFetchError.
type exactReader struct {
	rc        io.ReadCloser
	remaining int64
	segment   string
	chunkID   int
}

func (r *exactReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.rc.Read(p)
	r.remaining -= int64(n)
	if errors.Is(err, io.EOF) && r.remaining > 0 {
		return n, &ChunkFetchError{Segment: r.segment, ChunkID: r.chunkID, cause: io.ErrUnexpectedEOF}
	}
	if err == nil && r.remaining == 0 {
		return n, io.EOF
	}
	return n, err
}

func (r *exactReader) Close() error {
	return r.rc.Close()
}
