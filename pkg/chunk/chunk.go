// Package chunk implements the split/merge codec for oversized sequence
// values. A sequence too large for a single backend record is sliced into
// consecutive chunks sized below the backend's per-field ceiling, each slice
// compressed independently and tagged with its position so the original
// value can be reconstructed exactly.
package chunk

import (
	"fmt"
	"sort"

	"github.com/polystore/polystore/pkg/compression"
	"github.com/polystore/polystore/pkg/errors"
)

// Chunk size thresholds per target backend, chosen below each backend's hard
// per-document / per-property size ceiling (16MB documents for MongoDB with
// headroom for metadata, 64KB string properties for Azure Table).
const (
	// MongoSize is the chunk size used when chunks are stored as documents
	MongoSize = 300_000
	// TableSize is the chunk size used when chunks are stored as table entities
	TableSize = 60_000
)

// Chunk is one compressed, ordered slice of an oversized sequence value.
// The field names form the wire shape written by prior runs and must not
// change: sorting chunks of one record by ChunkNumber ascending and
// concatenating the decompressed payloads reproduces the original value.
type Chunk struct {
	ID               string `bson:"_id" json:"_id"`
	AccessionVersion string `bson:"accession_version" json:"accession_version"`
	Sequence         []byte `bson:"sequence" json:"sequence"`
	ChunkNumber      int    `bson:"chunk_number" json:"chunk_number"`
}

// Record is a reassembled sequence value.
type Record struct {
	AccessionVersion string `bson:"accession_version" json:"accession_version"`
	Sequence         string `bson:"sequence" json:"sequence"`
}

// Codec splits and merges sequence values for one target backend.
// The zero value is unusable; construct with New or NewWithSize.
type Codec struct {
	size int
	comp compression.Compressor
}

// New returns a Codec configured for the named target backend:
// "mongodb" selects MongoSize, anything else selects TableSize.
func New(target string) (*Codec, error) {
	size := TableSize
	if target == "mongodb" {
		size = MongoSize
	}
	return NewWithSize(size)
}

// NewWithSize returns a Codec with an explicit chunk size.
func NewWithSize(size int) (*Codec, error) {
	if size <= 0 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "chunk size must be positive, got %d", size)
	}

	comp, err := compression.NewCompressor(nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create compressor")
	}

	return &Codec{size: size, comp: comp}, nil
}

// Size returns the configured chunk size.
func (c *Codec) Size() int {
	return c.size
}

// Split slices sequence into consecutive substrings of at most the configured
// chunk size, compresses each slice independently, and tags each with its
// 0-based position. An empty sequence yields zero chunks.
func (c *Codec) Split(identifier, sequence string) ([]Chunk, error) {
	if c == nil || c.size <= 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "codec is not configured")
	}
	if identifier == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "identifier is required")
	}

	chunks := make([]Chunk, 0, (len(sequence)+c.size-1)/c.size)

	for idx, pos := 0, 0; pos < len(sequence); idx, pos = idx+1, pos+c.size {
		end := pos + c.size
		if end > len(sequence) {
			end = len(sequence)
		}

		payload, err := c.comp.Compress([]byte(sequence[pos:end]))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to compress chunk")
		}

		chunks = append(chunks, Chunk{
			ID:               fmt.Sprintf("%s_%d", identifier, idx),
			AccessionVersion: identifier,
			Sequence:         payload,
			ChunkNumber:      idx,
		})
	}

	return chunks, nil
}

// Merge reassembles the original record from its chunks. Input order does
// not matter: chunks are sorted by ChunkNumber ascending before payloads
// are decompressed and concatenated. The identifier is taken from the first
// chunk after sorting. Merging zero chunks is an error, since no identifier
// is available.
func (c *Codec) Merge(chunks []Chunk) (Record, error) {
	if c == nil || c.size <= 0 {
		return Record{}, errors.New(errors.ErrorTypeConfig, "codec is not configured")
	}
	if len(chunks) == 0 {
		return Record{}, errors.New(errors.ErrorTypeValidation, "no chunks to merge")
	}

	ordered := make([]Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ChunkNumber < ordered[j].ChunkNumber
	})

	if ordered[0].AccessionVersion == "" {
		return Record{}, errors.New(errors.ErrorTypeValidation, "chunks carry no identifier")
	}

	var sequence []byte
	for _, ch := range ordered {
		payload, err := c.comp.Decompress(ch.Sequence)
		if err != nil {
			return Record{}, errors.Wrap(err, errors.ErrorTypeData,
				fmt.Sprintf("failed to decompress chunk %d", ch.ChunkNumber))
		}
		sequence = append(sequence, payload...)
	}

	return Record{
		AccessionVersion: ordered[0].AccessionVersion,
		Sequence:         string(sequence),
	}, nil
}
