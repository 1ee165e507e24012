package codec

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ZSTD and LZ4 decoder pools for efficiency
var (
	zstdDecoderPool sync.Pool
	lz4ReaderPool   sync.Pool
)

func getZstdDecoder(r io.Reader) (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		dec := v.(*zstd.Decoder)
		if err := dec.Reset(r); err != nil {
			dec.Close()
			return nil, err
		}
		return dec, nil
	}
	// Concurrency 1 decodes synchronously on the caller's goroutine.
	return zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
}

func putZstdDecoder(dec *zstd.Decoder) {
	// Reset(nil) detaches the source and always reports ErrDecoderNilInput.
	_ = dec.Reset(nil)
	zstdDecoderPool.Put(dec)
}

// Zstd decodes zstd frames (github.com/klauspost/compress/zstd).
type Zstd struct{}

// NewReader returns a streaming zstd decoder over r.
func (Zstd) NewReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := getZstdDecoder(r)
	if err != nil {
		return nil, err
	}
	return &pooledReader{
		Reader:  dec,
		release: func() { putZstdDecoder(dec) },
	}, nil
}

// Name returns "zstd".
func (Zstd) Name() string { return "zstd" }

// LZ4 decodes LZ4 frames (github.com/pierrec/lz4/v4).
type LZ4 struct{}

// NewReader returns a streaming lz4 frame decoder over r.
func (LZ4) NewReader(r io.Reader) (io.ReadCloser, error) {
	var zr *lz4.Reader
	if v := lz4ReaderPool.Get(); v != nil {
		zr = v.(*lz4.Reader)
		zr.Reset(r)
	} else {
		zr = lz4.NewReader(r)
	}
	return &pooledReader{
		Reader: zr,
		release: func() {
			zr.Reset(nil)
			lz4ReaderPool.Put(zr)
		},
	}, nil
}

// Name returns "lz4".
func (LZ4) Name() string { return "lz4" }

// pooledReader returns its decoder to the pool on Close.
type pooledReader struct {
	io.Reader
	release func()
	once    sync.Once
}

func (p *pooledReader) Read(b []byte) (int, error) {
	if p.Reader == nil {
		return 0, io.ErrClosedPipe
	}
	return p.Reader.Read(b)
}

func (p *pooledReader) Close() error {
	p.once.Do(func() {
		p.Reader = nil
		p.release()
	})
	return nil
}
