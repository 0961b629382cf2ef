package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeUnderTest runs the same contract against every local implementation.
func storeUnderTest(t *testing.T) map[string]BlobStore {
	t.Helper()
	return map[string]BlobStore{
		"memory": NewMemoryStore(),
		"local":  NewLocalStore(t.TempDir()),
	}
}

func TestBlobStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, s := range storeUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("put and read back", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "model/weights.bin", []byte("weights")))

				b, err := s.Open(ctx, "model/weights.bin")
				require.NoError(t, err)
				defer b.Close()

				assert.Equal(t, int64(7), b.Size())
				data, err := ReadAll(b)
				require.NoError(t, err)
				assert.Equal(t, []byte("weights"), data)
			})

			t.Run("put replaces", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "model/weights.bin", []byte("v2")))
				b, err := s.Open(ctx, "model/weights.bin")
				require.NoError(t, err)
				defer b.Close()
				data, err := ReadAll(b)
				require.NoError(t, err)
				assert.Equal(t, []byte("v2"), data)
			})

			t.Run("ranged read", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "model/chunked", []byte("0123456789")))
				b, err := s.Open(ctx, "model/chunked")
				require.NoError(t, err)
				defer b.Close()

				buf := make([]byte, 4)
				n, err := b.ReadAt(buf, 3)
				require.NoError(t, err)
				assert.Equal(t, 4, n)
				assert.Equal(t, []byte("3456"), buf)
			})

			t.Run("missing blob is ErrNotFound", func(t *testing.T) {
				_, err := s.Open(ctx, "model/missing")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("list by prefix sorted", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "model/b", []byte("b")))
				require.NoError(t, s.Put(ctx, "model/a", []byte("a")))
				require.NoError(t, s.Put(ctx, "other/c", []byte("c")))

				names, err := s.List(ctx, "model/")
				require.NoError(t, err)
				assert.Equal(t, []string{"model/a", "model/b", "model/chunked", "model/weights.bin"}, names)
			})

			t.Run("delete tolerates missing", func(t *testing.T) {
				require.NoError(t, s.Delete(ctx, "model/a"))
				require.NoError(t, s.Delete(ctx, "model/a"))

				_, err := s.Open(ctx, "model/a")
				assert.ErrorIs(t, err, ErrNotFound)
			})
		})
	}
}

func TestLocalStoreListEmptyRoot(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir() + "/never-created")

	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
