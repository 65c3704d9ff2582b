package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polystore/polystore/pkg/errors"
)

func TestTargetSizes(t *testing.T) {
	mongo, err := New("mongodb")
	require.NoError(t, err)
	assert.Equal(t, MongoSize, mongo.Size())

	azure, err := New("azure")
	require.NoError(t, err)
	assert.Equal(t, TableSize, azure.Size())

	// Any non-mongodb target falls back to the table threshold.
	other, err := New("unknown")
	require.NoError(t, err)
	assert.Equal(t, TableSize, other.Size())
}

func TestNewWithSizeRejectsNonPositive(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := NewWithSize(size)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	}
}

func TestSplitFourCharsChunkSizeTwo(t *testing.T) {
	codec, err := NewWithSize(2)
	require.NoError(t, err)

	chunks, err := codec.Split("ACC1", "AAAA")
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "ACC1_0", chunks[0].ID)
	assert.Equal(t, 0, chunks[0].ChunkNumber)
	assert.Equal(t, "ACC1_1", chunks[1].ID)
	assert.Equal(t, 1, chunks[1].ChunkNumber)

	for _, ch := range chunks {
		assert.Equal(t, "ACC1", ch.AccessionVersion)
		assert.NotEqual(t, []byte("AA"), ch.Sequence) // compressed payloads
	}

	record, err := codec.Merge(chunks)
	require.NoError(t, err)
	assert.Equal(t, "ACC1", record.AccessionVersion)
	assert.Equal(t, "AAAA", record.Sequence)
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		size int
		seq  string
	}{
		{"short", 10, "ACGT"},
		{"exact multiple", 4, "ACGTACGT"},
		{"uneven tail", 3, "ACGTACG"},
		{"single char", 1, "ACGTN"},
		{"large", 1000, strings.Repeat("ACGTN", 12345)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			codec, err := NewWithSize(tc.size)
			require.NoError(t, err)

			chunks, err := codec.Split("NC_000001.11", tc.seq)
			require.NoError(t, err)

			record, err := codec.Merge(chunks)
			require.NoError(t, err)
			assert.Equal(t, "NC_000001.11", record.AccessionVersion)
			assert.Equal(t, tc.seq, record.Sequence)
		})
	}
}

func TestMergeIsOrderIndependent(t *testing.T) {
	codec, err := NewWithSize(2)
	require.NoError(t, err)

	chunks, err := codec.Split("ACC1", "AACCGGTT")
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	reversed := make([]Chunk, len(chunks))
	for i, ch := range chunks {
		reversed[len(chunks)-1-i] = ch
	}

	record, err := codec.Merge(reversed)
	require.NoError(t, err)
	assert.Equal(t, "AACCGGTT", record.Sequence)

	// Merge must not reorder the caller's slice.
	assert.Equal(t, 3, reversed[0].ChunkNumber)
}

func TestSplitEmptySequence(t *testing.T) {
	codec, err := NewWithSize(100)
	require.NoError(t, err)

	chunks, err := codec.Split("ACC1", "")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestMergeEmptyFails(t *testing.T) {
	codec, err := NewWithSize(100)
	require.NoError(t, err)

	_, err = codec.Merge(nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestMergeMissingIdentifierFails(t *testing.T) {
	codec, err := NewWithSize(100)
	require.NoError(t, err)

	chunks, err := codec.Split("ACC1", "ACGT")
	require.NoError(t, err)
	chunks[0].AccessionVersion = ""

	_, err = codec.Merge(chunks)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestUnconfiguredCodec(t *testing.T) {
	var codec Codec

	_, err := codec.Split("ACC1", "ACGT")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = codec.Merge([]Chunk{{AccessionVersion: "ACC1"}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSplitRequiresIdentifier(t *testing.T) {
	codec, err := NewWithSize(10)
	require.NoError(t, err)

	_, err = codec.Split("", "ACGT")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
