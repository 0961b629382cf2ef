package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorRoundTrip(t *testing.T) {
	t.Run("bit identical including special values", func(t *testing.T) {
		in := []float32{
			0, 1, -1, 0.1, -0.1,
			float32(math.Inf(1)), float32(math.Inf(-1)),
			math.MaxFloat32, math.SmallestNonzeroFloat32,
			float32(math.NaN()),
		}
		out, err := DecodeVector(EncodeVector(in))
		require.NoError(t, err)
		require.Len(t, out, len(in))
		for i := range in {
			assert.Equal(t, math.Float32bits(in[i]), math.Float32bits(out[i]), "index %d", i)
		}
	})

	t.Run("empty vector", func(t *testing.T) {
		buf := EncodeVector(nil)
		assert.Empty(t, buf)
		out, err := DecodeVector(buf)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("rejects misaligned buffers", func(t *testing.T) {
		_, err := DecodeVector([]byte{1, 2, 3})
		assert.Error(t, err)
	})
}
