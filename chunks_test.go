package pagestash

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagestash/pagestash/model"
)

func testChunk(id, pageID string, index int) model.Chunk {
	return model.Chunk{
		ID:          id,
		PageID:      pageID,
		URL:         "https://example.com/" + pageID,
		ChunkIndex:  index,
		TokenLength: 12,
		Text:        "chunk " + id,
		Embedding:   []float32{0.1, 0.2, 0.3, float32(index)},
	}
}

func TestBulkPutChunks(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips embeddings", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.UpsertPage(ctx, testPage("p1", "https://example.com/p1")))

		want := []model.Chunk{testChunk("c1", "p1", 0), testChunk("c2", "p1", 1)}
		require.NoError(t, s.BulkPutChunks(ctx, want))

		got, err := s.ListChunksByPage(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, want[0].Embedding, got[0].Embedding)
		assert.Equal(t, want[1].Embedding, got[1].Embedding)
		assert.NotZero(t, got[0].CreatedAt)
		assert.NotZero(t, got[0].LastAccessed)
	})

	t.Run("spans multiple batches", func(t *testing.T) {
		s := newTestStore(t, WithBatchSize(10))
		require.NoError(t, s.UpsertPage(ctx, testPage("p1", "https://example.com/p1")))

		chunks := make([]model.Chunk, 37)
		for i := range chunks {
			chunks[i] = testChunk(fmt.Sprintf("c%03d", i), "p1", i)
		}
		require.NoError(t, s.BulkPutChunks(ctx, chunks))

		got, err := s.ListChunksByPage(ctx, "p1")
		require.NoError(t, err)
		assert.Len(t, got, 37)
	})

	t.Run("upsert replaces by chunk id", func(t *testing.T) {
		s := newTestStore(t)
		c := testChunk("c1", "p1", 0)
		require.NoError(t, s.BulkPutChunks(ctx, []model.Chunk{c}))

		c.Text = "rewritten"
		c.Embedding = []float32{9, 9, 9, 9}
		require.NoError(t, s.BulkPutChunks(ctx, []model.Chunk{c}))

		got, err := s.ListChunksByPage(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "rewritten", got[0].Text)
		assert.Equal(t, []float32{9, 9, 9, 9}, got[0].Embedding)
	})

	t.Run("list orders by chunk index", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.BulkPutChunks(ctx, []model.Chunk{
			testChunk("c3", "p1", 2),
			testChunk("c1", "p1", 0),
			testChunk("c2", "p1", 1),
		}))

		got, err := s.ListChunksByPage(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"c1", "c2", "c3"}, []string{got[0].ID, got[1].ID, got[2].ID})
	})

	t.Run("recovers from quota exhaustion by evicting and retrying", func(t *testing.T) {
		clock := newTestClock(1000)
		metrics := &BasicMetricsCollector{}
		s := newTestStore(t,
			WithClock(clock.Now),
			WithMaxDBPages(256), // 1 MiB file budget
			WithQuota(5, 100_000),
			WithMetricsCollector(metrics),
		)

		// Fill most of the file budget with cold pages, oldest first.
		filler := strings.Repeat("x", 12*1024)
		for i := 0; i < 40; i++ {
			id := fmt.Sprintf("p%02d", i)
			require.NoError(t, s.UpsertPage(ctx, testPage(id, "https://example.com/"+id)))
			c := testChunk("c-"+id, id, 0)
			c.Text = filler
			require.NoError(t, s.BulkPutChunks(ctx, []model.Chunk{c}))
		}

		// This write overflows the budget, triggers an eviction pass, and
		// succeeds on the retry against the freed space.
		big := strings.Repeat("y", 16*1024)
		var incoming []model.Chunk
		for i := 0; i < 30; i++ {
			c := testChunk(fmt.Sprintf("n%02d", i), "fresh", i)
			c.Text = big
			incoming = append(incoming, c)
		}
		require.NoError(t, s.BulkPutChunks(ctx, incoming))

		got, err := s.ListChunksByPage(ctx, "fresh")
		require.NoError(t, err)
		assert.Len(t, got, 30)

		// The coldest filler pages were evicted to make room.
		p, err := s.GetPageByID(ctx, "p00")
		require.NoError(t, err)
		assert.Nil(t, p)
		p, err = s.GetPageByID(ctx, "p39")
		require.NoError(t, err)
		assert.NotNil(t, p)

		assert.Equal(t, int64(1), metrics.BulkPutRetries.Load())
		assert.Equal(t, int64(1), metrics.EvictionCount.Load())
	})

	t.Run("quota exhaustion surfaces as ErrQuotaExceeded", func(t *testing.T) {
		// A page budget this small cannot hold the payload even after the
		// recovery pass, so the retry fails too and the quota error reaches
		// the caller.
		s := newTestStore(t, WithMaxDBPages(64))

		big := strings.Repeat("x", 32*1024)
		var chunks []model.Chunk
		for i := 0; i < 64; i++ {
			c := testChunk(fmt.Sprintf("c%03d", i), "p1", i)
			c.Text = big
			chunks = append(chunks, c)
		}
		err := s.BulkPutChunks(ctx, chunks)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrQuotaExceeded)
	})
}

func TestTouchChunks(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(1000)
	s := newTestStore(t, WithClock(clock.Now))

	require.NoError(t, s.BulkPutChunks(ctx, []model.Chunk{
		testChunk("c1", "p1", 0),
		testChunk("c2", "p1", 1),
		testChunk("c3", "p1", 2),
	}))
	before, err := s.ListChunksByPage(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, s.TouchChunks(ctx, []string{"c1", "c3"}))
	after, err := s.ListChunksByPage(ctx, "p1")
	require.NoError(t, err)

	assert.Greater(t, after[0].LastAccessed, before[0].LastAccessed)
	assert.Equal(t, before[1].LastAccessed, after[1].LastAccessed)
	assert.Greater(t, after[2].LastAccessed, before[2].LastAccessed)

	// Empty input is a no-op.
	assert.NoError(t, s.TouchChunks(ctx, nil))
}

func TestEvictChunksForPage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var chunks []model.Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, testChunk(fmt.Sprintf("c%02d", i), "p1", i))
	}
	require.NoError(t, s.BulkPutChunks(ctx, chunks))

	t.Run("keeps the highest-index chunks", func(t *testing.T) {
		n, err := s.EvictChunksForPage(ctx, "p1", 3)
		require.NoError(t, err)
		assert.Equal(t, 7, n)

		got, err := s.ListChunksByPage(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, 7, got[0].ChunkIndex)
		assert.Equal(t, 9, got[2].ChunkIndex)
	})

	t.Run("no-op when within budget", func(t *testing.T) {
		n, err := s.EvictChunksForPage(ctx, "p1", 100)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("negative keep clears the page", func(t *testing.T) {
		n, err := s.EvictChunksForPage(ctx, "p1", -1)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})
}
