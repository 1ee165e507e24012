package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/chunkstream/blobstore"
	"github.com/hupe1980/chunkstream/codec"
)

// CurrentVersion is the version of the manifest format.
const CurrentVersion = 1

const (
	indexTypeFixed    = "fixed"
	indexTypeVariable = "variable"
)

// SegmentManifest describes how one segment is laid out in its blob.
type SegmentManifest struct {
	Version int
	Index   ChunkIndex
	// Compression is the codec name used for every chunk ("none" if empty).
	Compression string
}

// New creates a manifest for the given index and codec name.
func New(idx ChunkIndex, compression string) (*SegmentManifest, error) {
	if _, ok := codec.ByName(compression); !ok {
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
	return &SegmentManifest{
		Version:     CurrentVersion,
		Index:       idx,
		Compression: compression,
	}, nil
}

// ChunkIndex returns the segment's chunk index.
func (m *SegmentManifest) ChunkIndex() ChunkIndex {
	return m.Index
}

// Codec returns the codec that decodes this segment's chunks.
func (m *SegmentManifest) Codec() codec.Codec {
	c, ok := codec.ByName(m.Compression)
	if !ok {
		// Unmarshal and New reject unknown names.
		return codec.None{}
	}
	return c
}

type jsonManifest struct {
	Version     int       `json:"version"`
	Compression string    `json:"compression,omitempty"`
	ChunkIndex  jsonIndex `json:"chunkIndex"`
}

type jsonIndex struct {
	Type string `json:"type"`

	// fixed
	OriginalChunkSize         int64 `json:"originalChunkSize,omitempty"`
	OriginalFileSize          int64 `json:"originalFileSize,omitempty"`
	TransformedChunkSize      int64 `json:"transformedChunkSize,omitempty"`
	FinalTransformedChunkSize int64 `json:"finalTransformedChunkSize,omitempty"`

	// variable
	OriginalSizes    []int64 `json:"originalSizes,omitempty"`
	TransformedSizes []int64 `json:"transformedSizes,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m *SegmentManifest) MarshalJSON() ([]byte, error) {
	jm := jsonManifest{
		Version:     m.Version,
		Compression: m.Compression,
	}

	switch idx := m.Index.(type) {
	case *FixedSizeIndex:
		jm.ChunkIndex = jsonIndex{
			Type:                      indexTypeFixed,
			OriginalChunkSize:         idx.originalChunkSize,
			OriginalFileSize:          idx.originalFileSize,
			TransformedChunkSize:      idx.transformedChunkSize,
			FinalTransformedChunkSize: idx.finalTransformedChunkSize,
		}
	case *VariableSizeIndex:
		jm.ChunkIndex = jsonIndex{
			Type:             indexTypeVariable,
			OriginalSizes:    idx.originalSizes(),
			TransformedSizes: idx.transformedSizes(),
		}
	default:
		return nil, fmt.Errorf("%w: cannot encode index type %T", ErrInvalidIndex, m.Index)
	}

	return json.Marshal(jm)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *SegmentManifest) UnmarshalJSON(data []byte) error {
	var jm jsonManifest
	if err := json.Unmarshal(data, &jm); err != nil {
		return err
	}

	if jm.Version != CurrentVersion {
		return fmt.Errorf("%w: %d", ErrIncompatibleVersion, jm.Version)
	}
	if _, ok := codec.ByName(jm.Compression); !ok {
		return fmt.Errorf("unknown compression %q", jm.Compression)
	}

	var (
		idx ChunkIndex
		err error
	)
	switch ji := jm.ChunkIndex; ji.Type {
	case indexTypeFixed:
		idx, err = NewFixedSizeIndex(ji.OriginalChunkSize, ji.OriginalFileSize, ji.TransformedChunkSize, ji.FinalTransformedChunkSize)
	case indexTypeVariable:
		idx, err = NewVariableSizeIndex(ji.OriginalSizes, ji.TransformedSizes)
	default:
		err = fmt.Errorf("%w: unknown index type %q", ErrInvalidIndex, ji.Type)
	}
	if err != nil {
		return err
	}

	m.Version = jm.Version
	m.Compression = jm.Compression
	m.Index = idx
	return nil
}

// Store loads segment manifests from a blob store.
type Store struct {
	store blobstore.BlobStore
}

// NewStore creates a new manifest store.
func NewStore(store blobstore.BlobStore) *Store {
	return &Store{store: store}
}

// Load reads and decodes the named manifest blob.
func (s *Store) Load(ctx context.Context, name string) (*SegmentManifest, error) {
	b, err := s.store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open manifest %s: %w", name, err)
	}
	defer func() { _ = b.Close() }()

	content, err := blobstore.ReadAll(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", name, err)
	}

	m := &SegmentManifest{}
	if err := json.Unmarshal(content, m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", name, err)
	}
	return m, nil
}
