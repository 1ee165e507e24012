package fetch

import (
	"context"
	"errors"
	"io"

	"github.com/hupe1980/chunkstream/manifest"
)

// NewRangeReader builds a Sequence for r and returns it as one continuous
// stream.
func NewRangeReader(ctx context.Context, fetcher ChunkFetcher, segment string, m *manifest.SegmentManifest, r Range) (io.ReadCloser, error) {
	seq, err := NewSequence(fetcher, segment, m, r)
	if err != nil {
		return nil, err
	}
	return NewReader(ctx, seq), nil
}

// NewReader concatenates the elements of it into a single stream.
//
// Each element is closed once it is drained. Close releases the element in
// progress and, if it implements io.Closer, the iterator; elements not yet
// produced are never fetched.
func NewReader(ctx context.Context, it Iterator) io.ReadCloser {
	return &reader{ctx: ctx, it: it}
}

// reader wraps an Iterator to implement io.Reader with context.
type reader struct {
	ctx    context.Context
	it     Iterator
	cur    io.ReadCloser
	err    error
	closed bool
}

func (r *reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, io.ErrClosedPipe
	}
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}

	for {
		if r.cur == nil {
			if !r.it.HasNext() {
				r.err = io.EOF
				return 0, io.EOF
			}
			cur, err := r.it.Next(r.ctx)
			if err != nil {
				r.err = err
				return 0, err
			}
			r.cur = cur
		}

		n, err := r.cur.Read(p)
		if errors.Is(err, io.EOF) {
			closeErr := r.cur.Close()
			r.cur = nil
			if closeErr != nil {
				r.err = closeErr
				return n, closeErr
			}
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			r.err = err
		}
		return n, err
	}
}

func (r *reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if r.cur != nil {
		errs = append(errs, r.cur.Close())
		r.cur = nil
	}
	if c, ok := r.it.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
