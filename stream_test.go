package pagestash

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagestash/pagestash/model"
)

func TestStreamChunkEmbeddings(t *testing.T) {
	ctx := context.Background()

	t.Run("yields every chunk in insertion order", func(t *testing.T) {
		s := newTestStore(t)

		// More chunks than one fetch, to cross the internal batch boundary.
		total := streamFetchSize + 50
		var chunks []model.Chunk
		for i := 0; i < total; i++ {
			c := testChunk(fmt.Sprintf("c%04d", i), "p1", i)
			c.Embedding = []float32{float32(i)}
			chunks = append(chunks, c)
		}
		require.NoError(t, s.BulkPutChunks(ctx, chunks))

		var got []model.ChunkEmbedding
		for ce, err := range s.StreamChunkEmbeddings(ctx) {
			require.NoError(t, err)
			got = append(got, ce)
		}
		require.Len(t, got, total)
		assert.Equal(t, "c0000", got[0].ChunkID)
		assert.Equal(t, []float32{0}, got[0].Embedding)
		assert.Equal(t, fmt.Sprintf("c%04d", total-1), got[total-1].ChunkID)
	})

	t.Run("early break stops the stream", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.BulkPutChunks(ctx, []model.Chunk{
			testChunk("c1", "p1", 0),
			testChunk("c2", "p1", 1),
			testChunk("c3", "p1", 2),
		}))

		var n int
		for _, err := range s.StreamChunkEmbeddings(ctx) {
			require.NoError(t, err)
			n++
			if n == 2 {
				break
			}
		}
		assert.Equal(t, 2, n)
	})

	t.Run("chunks written mid-stream are not yielded", func(t *testing.T) {
		s := newTestStore(t)
		var chunks []model.Chunk
		for i := 0; i < 10; i++ {
			chunks = append(chunks, testChunk(fmt.Sprintf("c%02d", i), "p1", i))
		}
		require.NoError(t, s.BulkPutChunks(ctx, chunks))

		var seen []string
		first := true
		for ce, err := range s.StreamChunkEmbeddings(ctx) {
			require.NoError(t, err)
			seen = append(seen, ce.ChunkID)
			if first {
				first = false
				// Write while the snapshot is live; the new chunk is
				// outside the snapshot and must not appear.
				require.NoError(t, s.BulkPutChunks(ctx, []model.Chunk{
					testChunk("late", "p1", 99),
				}))
			}
		}
		assert.Len(t, seen, 10)
		assert.NotContains(t, seen, "late")
	})

	t.Run("empty store yields nothing", func(t *testing.T) {
		s := newTestStore(t)
		for range s.StreamChunkEmbeddings(ctx) {
			t.Fatal("unexpected yield from empty store")
		}
	})

	t.Run("closed store yields ErrClosed", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Close())
		for _, err := range s.StreamChunkEmbeddings(ctx) {
			assert.ErrorIs(t, err, ErrClosed)
		}
	})
}

func TestIteratePages(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(1000)
	s := newTestStore(t, WithClock(clock.Now))

	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("p%02d", i)
		require.NoError(t, s.UpsertPage(ctx, testPage(id, "https://example.com/"+id)))
	}

	t.Run("batches in last-updated order", func(t *testing.T) {
		var batches int
		var all []string
		for pages, err := range s.IteratePages(ctx, 10) {
			require.NoError(t, err)
			batches++
			for _, p := range pages {
				all = append(all, p.ID)
			}
		}
		assert.Equal(t, 3, batches)
		require.Len(t, all, 25)
		assert.Equal(t, "p00", all[0])
		assert.Equal(t, "p24", all[24])
	})

	t.Run("early break", func(t *testing.T) {
		var batches int
		for _, err := range s.IteratePages(ctx, 10) {
			require.NoError(t, err)
			batches++
			break
		}
		assert.Equal(t, 1, batches)
	})

	t.Run("default batch size", func(t *testing.T) {
		var batches int
		for pages, err := range s.IteratePages(ctx, 0) {
			require.NoError(t, err)
			batches++
			assert.Len(t, pages, 25)
		}
		assert.Equal(t, 1, batches)
	})
}
