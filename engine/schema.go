package engine

import (
	"database/sql"
	"fmt"
)

// schemaVersion is the current schema generation. Open migrates forward one
// generation at a time; each step runs in its own transaction and must be
// idempotent (it may not assume prior generations ran in this process).
const schemaVersion = 4

type migration struct {
	version int
	apply   func(tx *sql.Tx) error
}

var migrations = []migration{
	{1, migrateV1},
	{2, migrateV2},
	{3, migrateV3},
	{4, migrateV4},
}

func migrate(db *sql.DB) error {
	var current int
	if err := db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if err := m.apply(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("generation %d: %w", m.version, err)
		}
		// PRAGMA arguments cannot be bound.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("generation %d: stamp version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("generation %d: commit: %w", m.version, err)
		}
	}
	return nil
}

// Generation 1: content tables (pages, chunks, images) and settings.
func migrateV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS pages (
		page_id      TEXT PRIMARY KEY,
		url          TEXT NOT NULL,
		domain       TEXT NOT NULL,
		title        TEXT,
		description  TEXT,
		first_seen   INTEGER NOT NULL,
		last_updated INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	CREATE INDEX IF NOT EXISTS idx_pages_domain ON pages(domain);

	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id     TEXT PRIMARY KEY,
		page_id      TEXT NOT NULL,
		url          TEXT NOT NULL,
		chunk_index  INTEGER NOT NULL,
		token_length INTEGER NOT NULL,
		text         TEXT NOT NULL,
		embedding    BLOB NOT NULL,
		created_at   INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_page ON chunks(page_id);

	CREATE TABLE IF NOT EXISTS images (
		image_id     TEXT PRIMARY KEY,
		url          TEXT NOT NULL,
		page_url     TEXT NOT NULL,
		page_id      TEXT NOT NULL,
		caption_text TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_images_page ON images(page_id);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`)
	return err
}

// Generation 2: serialized search-index snapshots.
func migrateV2(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS search_index_snapshots (
		version      INTEGER PRIMARY KEY,
		blob         BLOB NOT NULL,
		codec        TEXT NOT NULL,
		doc_count    INTEGER NOT NULL,
		persisted_at INTEGER NOT NULL,
		approx_bytes INTEGER NOT NULL
	);`)
	return err
}

// Generation 3: the background work queue. The backfill defends against
// rows written by earlier builds that lacked defaults; on a fresh table it
// matches zero rows.
func migrateV3(tx *sql.Tx) error {
	if _, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS queue_items (
		id         TEXT PRIMARY KEY,
		type       TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'pending',
		priority   INTEGER NOT NULL DEFAULT 0,
		payload    BLOB,
		created_at INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT 0,
		attempts   INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_queue_status ON queue_items(status, priority);`); err != nil {
		return err
	}
	_, err := tx.Exec(`
	UPDATE queue_items SET status = 'pending' WHERE status IS NULL OR status = '';
	UPDATE queue_items SET priority = 0 WHERE priority IS NULL;
	UPDATE queue_items SET attempts = 0 WHERE attempts IS NULL;
	UPDATE queue_items
		SET created_at = CAST(strftime('%s','now') AS INTEGER) * 1000
		WHERE created_at IS NULL OR created_at = 0;
	UPDATE queue_items
		SET updated_at = created_at
		WHERE updated_at IS NULL OR updated_at = 0;`)
	return err
}

// Generation 4: access-time tracking for LRU eviction. Adds last_accessed to
// pages and chunks, backfills it from the best prior signal, and indexes it.
func migrateV4(tx *sql.Tx) error {
	if err := addColumn(tx, "pages", "last_accessed", "INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	if err := addColumn(tx, "chunks", "last_accessed", "INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	_, err := tx.Exec(`
	UPDATE pages
		SET last_accessed = CASE WHEN last_updated > 0 THEN last_updated ELSE first_seen END
		WHERE last_accessed = 0;
	UPDATE chunks SET last_accessed = created_at WHERE last_accessed = 0;
	CREATE INDEX IF NOT EXISTS idx_pages_last_accessed ON pages(last_accessed);
	CREATE INDEX IF NOT EXISTS idx_chunks_last_accessed ON chunks(last_accessed);`)
	return err
}

// addColumn adds a column if it does not exist. ALTER TABLE ADD COLUMN is
// not idempotent on its own, so the column list is checked first.
func addColumn(tx *sql.Tx, table, column, decl string) error {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer rows.Close()

	exists := false
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &primaryKey); err != nil {
			return err
		}
		if name == column {
			exists = true
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = tx.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	return err
}
