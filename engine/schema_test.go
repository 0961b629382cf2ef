package engine

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableNames(t *testing.T, db *sql.DB) map[string]bool {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'table'")
	require.NoError(t, err)
	defer rows.Close()

	names := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names[name] = true
	}
	require.NoError(t, rows.Err())
	return names
}

func TestMigrateFreshDatabase(t *testing.T) {
	e := openTestEngine(t)

	names := tableNames(t, e.DB())
	for _, want := range []string{
		"pages", "chunks", "images", "settings", "search_index_snapshots", "queue_items",
	} {
		assert.True(t, names[want], "missing table %s", want)
	}
}

func TestMigrateIsIdempotentAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.db")

	e1, err := Open(path)
	require.NoError(t, err)
	_, err = e1.DB().Exec(
		"INSERT INTO pages (page_id, url, domain, first_seen, last_updated, last_accessed) VALUES ('p1', 'u', 'd', 1, 2, 3)")
	require.NoError(t, err)
	require.NoError(t, e1.Close())

	// Reopening replays migrate against an already-current database.
	e2, err := Open(path)
	require.NoError(t, err)
	defer e2.Close()

	var n int
	require.NoError(t, e2.DB().QueryRow("SELECT COUNT(*) FROM pages").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestMigrateFromOlderGeneration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.db")

	// Build a generation-1 database by hand: content tables only, no
	// last_accessed columns, no snapshot or queue tables.
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, migrateV1(tx))
	_, err = tx.Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	_, err = db.Exec(
		"INSERT INTO pages (page_id, url, domain, first_seen, last_updated) VALUES ('p1', 'u', 'd', 100, 200)")
	require.NoError(t, err)
	_, err = db.Exec(
		"INSERT INTO chunks (chunk_id, page_id, url, chunk_index, token_length, text, embedding, created_at) VALUES ('c1', 'p1', 'u', 0, 1, 't', x'00000000', 150)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	e, err := Open(path)
	require.NoError(t, err)
	defer e.Close()

	var version int
	require.NoError(t, e.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, schemaVersion, version)

	// Backfills: last_accessed seeded from the best prior signal.
	var pageAccessed, chunkAccessed int64
	require.NoError(t, e.DB().QueryRow("SELECT last_accessed FROM pages WHERE page_id = 'p1'").Scan(&pageAccessed))
	assert.Equal(t, int64(200), pageAccessed)
	require.NoError(t, e.DB().QueryRow("SELECT last_accessed FROM chunks WHERE chunk_id = 'c1'").Scan(&chunkAccessed))
	assert.Equal(t, int64(150), chunkAccessed)

	// Later-generation tables exist now.
	names := tableNames(t, e.DB())
	assert.True(t, names["search_index_snapshots"])
	assert.True(t, names["queue_items"])
}
