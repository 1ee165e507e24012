// Package codec centralizes chunk payload decoding.
//
// Chunks are stored transformed (optionally compressed) and every fetched
// chunk is decoded before trimming. The codec name is recorded in the segment
// manifest, so changing how a name decodes is a breaking change for stored
// segments.
package codec

import "io"

// Codec decodes transformed chunk payloads back into original bytes.
// Implementations must be safe for concurrent use.
type Codec interface {
	// NewReader returns a reader producing the decoded bytes of r.
	// Closing the returned reader releases decoder state; it does not close r.
	NewReader(r io.Reader) (io.ReadCloser, error)
	Name() string
}

// ByName returns a built-in codec by its stable name.
//
// The empty name maps to None.
func ByName(name string) (Codec, bool) {
	switch name {
	case "", "none":
		return None{}, true
	case "zstd":
		return Zstd{}, true
	case "lz4":
		return LZ4{}, true
	default:
		return nil, false
	}
}

// None passes chunk bytes through unchanged.
type None struct{}

// NewReader returns r as is.
func (None) NewReader(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil }

// Name returns "none".
func (None) Name() string { return "none" }
