package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripAllAlgorithms(t *testing.T) {
	data := bytes.Repeat([]byte("ACGTACGTNNNN"), 4096)

	for _, alg := range []Algorithm{None, Gzip, Snappy, S2, LZ4, Zstd} {
		t.Run(string(alg), func(t *testing.T) {
			comp, err := NewCompressor(&Config{Algorithm: alg, Level: Default})
			require.NoError(t, err)

			compressed, err := comp.Compress(data)
			require.NoError(t, err)

			restored, err := comp.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, data, restored)
			assert.Equal(t, alg, comp.Algorithm())
		})
	}
}

func TestZstdShrinksRepetitiveInput(t *testing.T) {
	data := bytes.Repeat([]byte("AAAACCCCGGGGTTTT"), 1024)

	comp, err := NewCompressor(nil) // default config is Zstd
	require.NoError(t, err)
	require.Equal(t, Zstd, comp.Algorithm())

	compressed, err := comp.Compress(data)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(data))
}

func TestCompressEmpty(t *testing.T) {
	comp, err := NewCompressor(&Config{Algorithm: Zstd, Level: Fastest})
	require.NoError(t, err)

	compressed, err := comp.Compress(nil)
	require.NoError(t, err)

	restored, err := comp.Decompress(compressed)
	require.NoError(t, err)
	assert.Empty(t, restored)
}

func TestUnknownAlgorithm(t *testing.T) {
	_, err := NewCompressor(&Config{Algorithm: "brotli"})
	assert.Error(t, err)
}
