package fetch

import (
	"context"
	"io"
	"sync"
)

type readAheadResult struct {
	rc  io.ReadCloser
	err error
}

// ReadAhead wraps an Iterator and fetches up to depth elements ahead of the
// consumer on a background goroutine. Order and single-pass semantics are
// preserved; an error from the wrapped iterator is delivered in order and
// ends the sequence. A context cancelled before the wrapped iterator is
// exhausted is delivered the same way, as the context's error.
//
// Close must be called to stop the goroutine and release buffered elements.
type ReadAhead struct {
	ch     chan readAheadResult
	cancel context.CancelFunc
	done   chan struct{}

	// stopErr is set by the producer before ch is closed when it stopped
	// with elements left. The consumer reads it only after ch is closed.
	stopErr       error
	stopDelivered bool
	peeked        *readAheadResult
	closeOnce     sync.Once
}

// NewReadAhead starts prefetching from it. ctx bounds the background fetches.
// depth < 1 is treated as 1.
func NewReadAhead(ctx context.Context, it Iterator, depth int) *ReadAhead {
	depth = max(depth, 1)
	ctx, cancel := context.WithCancel(ctx)

	ra := &ReadAhead{
		// The producer holds one element while blocked on a full channel.
		ch:     make(chan readAheadResult, depth-1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go ra.run(ctx, it)
	return ra
}

func (ra *ReadAhead) run(ctx context.Context, it Iterator) {
	defer close(ra.done)
	defer close(ra.ch)

	for it.HasNext() {
		if err := ctx.Err(); err != nil {
			ra.stopErr = err
			return
		}
		rc, err := it.Next(ctx)
		select {
		case ra.ch <- readAheadResult{rc: rc, err: err}:
		case <-ctx.Done():
			if rc != nil {
				_ = rc.Close()
			}
			if err == nil {
				ra.stopErr = ctx.Err()
			}
			return
		}
		if err != nil {
			return
		}
	}
}

// HasNext reports whether another element (or error) is available.
// It blocks until the producer delivers one or finishes.
func (ra *ReadAhead) HasNext() bool {
	if ra.peeked != nil {
		return true
	}
	res, ok := <-ra.ch
	if !ok {
		return ra.peekStopErr()
	}
	ra.peeked = &res
	return true
}

// peekStopErr queues the producer's stop error once. ch must be closed.
func (ra *ReadAhead) peekStopErr() bool {
	if ra.stopErr == nil || ra.stopDelivered {
		return false
	}
	ra.stopDelivered = true
	ra.peeked = &readAheadResult{err: ra.stopErr}
	return true
}

// Next returns the next element in order.
func (ra *ReadAhead) Next(ctx context.Context) (io.ReadCloser, error) {
	if ra.peeked == nil {
		select {
		case res, ok := <-ra.ch:
			if !ok {
				if ra.stopErr != nil {
					ra.stopDelivered = true
					return nil, ra.stopErr
				}
				return nil, ErrSequenceExhausted
			}
			ra.peeked = &res
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	res := ra.peeked
	ra.peeked = nil
	return res.rc, res.err
}

// Close stops prefetching and closes every element fetched but not handed out.
func (ra *ReadAhead) Close() error {
	ra.closeOnce.Do(func() {
		ra.cancel()
		if ra.peeked != nil && ra.peeked.rc != nil {
			_ = ra.peeked.rc.Close()
		}
		ra.peeked = nil
		for res := range ra.ch {
			if res.rc != nil {
				_ = res.rc.Close()
			}
		}
		<-ra.done
	})
	return nil
}
