package compression

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	original := []byte(strings.Repeat(`{"a":1,"b":"quack"}`+"\n", 200))

	for _, alg := range Algorithms() {
		t.Run(string(alg), func(t *testing.T) {
			compressed, err := Compress(original, alg, Default)
			require.NoError(t, err)
			if alg != None {
				assert.Less(t, len(compressed), len(original))
			}

			got, err := Decompress(compressed, alg)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(original, got))
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, alg)
	assert.Equal(t, ".zst", alg.Extension())

	alg, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, alg)
	assert.Empty(t, alg.Extension())

	_, err = ParseAlgorithm("rar")
	require.Error(t, err)
}

func TestWriterDoesNotCloseDestination(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Gzip, Best)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := Decompress(buf.Bytes(), Gzip)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}
