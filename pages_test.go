package pagestash

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagestash/pagestash/model"
)

func testPage(id, url string) model.Page {
	return model.Page{
		ID:    id,
		URL:   url,
		Title: "title of " + id,
	}
}

func TestUpsertPage(t *testing.T) {
	ctx := context.Background()

	t.Run("derives normalized domain from url", func(t *testing.T) {
		s := newTestStore(t)

		p := testPage("p1", "https://WWW.Example.COM/path?q=1")
		p.Domain = "should-be-overwritten"
		require.NoError(t, s.UpsertPage(ctx, p))

		got, err := s.GetPageByID(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "www.example.com", got.Domain)
	})

	t.Run("idempotent and preserves first_seen", func(t *testing.T) {
		clock := newTestClock(1000)
		s := newTestStore(t, WithClock(clock.Now))

		require.NoError(t, s.UpsertPage(ctx, testPage("p1", "https://example.com/a")))
		first, err := s.GetPageByID(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, first)

		updated := testPage("p1", "https://example.com/a")
		updated.Title = "new title"
		require.NoError(t, s.UpsertPage(ctx, updated))

		second, err := s.GetPageByID(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, second)
		assert.Equal(t, "new title", second.Title)
		assert.Equal(t, first.FirstSeen, second.FirstSeen)
		assert.Greater(t, second.LastUpdated, first.LastUpdated)
	})

	t.Run("rejects unparseable url", func(t *testing.T) {
		s := newTestStore(t)
		err := s.UpsertPage(ctx, testPage("p1", "http://exa mple.com/%zz"))
		assert.Error(t, err)
	})
}

func TestGetLatestPageByURL(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(1000)
	s := newTestStore(t, WithClock(clock.Now))

	t.Run("nil when absent", func(t *testing.T) {
		p, err := s.GetLatestPageByURL(ctx, "https://example.com/missing")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("picks most recently updated of duplicates", func(t *testing.T) {
		url := "https://example.com/dup"
		require.NoError(t, s.UpsertPage(ctx, testPage("old", url)))
		require.NoError(t, s.UpsertPage(ctx, testPage("new", url)))

		got, err := s.GetLatestPageByURL(ctx, url)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "new", got.ID)
	})
}

func TestListPagesByDomain(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(1000)
	s := newTestStore(t, WithClock(clock.Now))

	require.NoError(t, s.UpsertPage(ctx, testPage("a1", "https://a.com/1")))
	require.NoError(t, s.UpsertPage(ctx, testPage("a2", "https://a.com/2")))
	require.NoError(t, s.UpsertPage(ctx, testPage("b1", "https://b.com/1")))

	t.Run("filters by normalized domain", func(t *testing.T) {
		pages, err := s.ListPagesByDomain(ctx, "A.COM", 0)
		require.NoError(t, err)
		require.Len(t, pages, 2)
		// Most recently updated first.
		assert.Equal(t, "a2", pages[0].ID)
		assert.Equal(t, "a1", pages[1].ID)
	})

	t.Run("honors limit", func(t *testing.T) {
		pages, err := s.ListPagesByDomain(ctx, "a.com", 1)
		require.NoError(t, err)
		require.Len(t, pages, 1)
		assert.Equal(t, "a2", pages[0].ID)
	})

	t.Run("empty for unknown domain", func(t *testing.T) {
		pages, err := s.ListPagesByDomain(ctx, "c.com", 0)
		require.NoError(t, err)
		assert.Empty(t, pages)
	})
}

func TestTouchPage(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock(1000)
	s := newTestStore(t, WithClock(clock.Now))

	require.NoError(t, s.UpsertPage(ctx, testPage("p1", "https://example.com/a")))
	before, err := s.GetPageByID(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, s.TouchPage(ctx, "p1"))
	after, err := s.GetPageByID(ctx, "p1")
	require.NoError(t, err)

	assert.Greater(t, after.LastAccessed, before.LastAccessed)
	assert.Equal(t, before.LastUpdated, after.LastUpdated)

	// Unknown ids are tolerated.
	assert.NoError(t, s.TouchPage(ctx, "missing"))
}

func TestDeletePages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertPage(ctx, testPage("p1", "https://example.com/a")))
	require.NoError(t, s.UpsertPage(ctx, testPage("p2", "https://example.com/b")))
	require.NoError(t, s.BulkPutChunks(ctx, []model.Chunk{
		testChunk("c1", "p1", 0),
		testChunk("c2", "p1", 1),
		testChunk("c3", "p2", 0),
	}))
	require.NoError(t, s.BulkPutImages(ctx, []model.Image{
		{ID: "i1", URL: "https://example.com/i1.png", PageURL: "https://example.com/a", PageID: "p1"},
	}))

	t.Run("empty slice is a no-op", func(t *testing.T) {
		n, err := s.DeletePages(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("cascades to chunks and images", func(t *testing.T) {
		n, err := s.DeletePages(ctx, []string{"p1"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		p, err := s.GetPageByID(ctx, "p1")
		require.NoError(t, err)
		assert.Nil(t, p)

		chunks, err := s.ListChunksByPage(ctx, "p1")
		require.NoError(t, err)
		assert.Empty(t, chunks)

		images, err := s.ListImagesByPage(ctx, "p1")
		require.NoError(t, err)
		assert.Empty(t, images)

		// Sibling page untouched.
		chunks, err = s.ListChunksByPage(ctx, "p2")
		require.NoError(t, err)
		assert.Len(t, chunks, 1)
	})
}
