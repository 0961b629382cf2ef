package pagestash

import (
	"context"
	"database/sql"
	"math"
)

// Default retention caps. Sized for a single browser profile: roughly a few
// months of active browsing before LRU pressure kicks in.
const (
	DefaultMaxPages  = 5000
	DefaultMaxChunks = 50000

	// evictionPercentage is the extra headroom freed beyond the overage, so
	// that back-to-back quota hits do not re-trigger eviction immediately.
	evictionPercentage = 0.10
)

// settingsKeyLastEviction records when the last eviction pass ran.
const settingsKeyLastEviction = "last_eviction_at"

// EvictionStats reports the outcome of one eviction pass.
type EvictionStats struct {
	PagesEvicted  int
	ChunksEvicted int
	// CascadedChunks counts chunks removed because their page was evicted,
	// as opposed to chunks evicted directly by the chunk-cap pass.
	CascadedChunks int
}

// HandleQuotaExceeded runs one LRU eviction pass: least-recently-accessed
// pages (cascading their chunks and images), then least-recently-accessed
// chunks. Each target is the cap overage plus a fixed percentage of the
// current count, so the pass frees the margin even when the row counts are
// under their caps — the trigger may be byte-level exhaustion (SQLITE_FULL)
// rather than a row cap, and a pass that freed nothing could never unblock
// the retry. The cap-only gate lives in CheckAndEvictIfNeeded.
//
// Stamps the pass timestamp under a settings key for diagnostics.
func (s *Store) HandleQuotaExceeded(ctx context.Context) (EvictionStats, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return EvictionStats{}, err
	}
	start := s.clock()

	var stats EvictionStats
	err = eng.WithTx(ctx, func(tx *sql.Tx) error {
		pageCount, err := countRows(ctx, tx, "pages")
		if err != nil {
			return err
		}
		if target := evictionTarget(pageCount, s.maxPages); target > 0 {
			pages, cascaded, err := evictPagesLRU(ctx, tx, target)
			if err != nil {
				return err
			}
			stats.PagesEvicted = pages
			stats.CascadedChunks = cascaded
		}

		chunkCount, err := countRows(ctx, tx, "chunks")
		if err != nil {
			return err
		}
		if target := evictionTarget(chunkCount, s.maxChunks); target > 0 {
			n, err := evictChunksLRU(ctx, tx, target)
			if err != nil {
				return err
			}
			stats.ChunksEvicted = n
		}
		return nil
	})
	err = translateError(err)
	s.metrics.RecordEviction(stats.PagesEvicted, stats.ChunksEvicted, s.clock().Sub(start))
	s.logger.LogEviction(ctx, stats.PagesEvicted, stats.ChunksEvicted, err)
	if err != nil {
		return EvictionStats{}, err
	}

	if err := SetSetting(ctx, s, settingsKeyLastEviction, s.nowMillis()); err != nil {
		return EvictionStats{}, err
	}
	return stats, nil
}

// CheckAndEvictIfNeeded runs an eviction pass only when a cap is exceeded,
// for use by periodic background sweeps. Returns zero stats when within
// budget.
func (s *Store) CheckAndEvictIfNeeded(ctx context.Context) (EvictionStats, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return EvictionStats{}, err
	}

	if err := s.resources.AcquireBackground(ctx); err != nil {
		return EvictionStats{}, err
	}
	defer s.resources.ReleaseBackground()

	var pageCount, chunkCount int
	if err := eng.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM pages").Scan(&pageCount); err != nil {
		return EvictionStats{}, translateError(err)
	}
	if err := eng.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&chunkCount); err != nil {
		return EvictionStats{}, translateError(err)
	}
	if pageCount <= s.maxPages && chunkCount <= s.maxChunks {
		return EvictionStats{}, nil
	}
	return s.HandleQuotaExceeded(ctx)
}

// EvictChunksGlobally sweeps every page and trims each to keepPerPage chunks
// via the per-page keep-newest rule. Scheduled maintenance rather than
// reactive recovery, so it takes a background slot. Returns the total number
// of chunks removed.
func (s *Store) EvictChunksGlobally(ctx context.Context, keepPerPage int) (int, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return 0, err
	}

	if err := s.resources.AcquireBackground(ctx); err != nil {
		return 0, err
	}
	defer s.resources.ReleaseBackground()

	rows, err := eng.DB().QueryContext(ctx, "SELECT DISTINCT page_id FROM chunks")
	if err != nil {
		return 0, translateError(err)
	}
	var pageIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		pageIDs = append(pageIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	total := 0
	for _, id := range pageIDs {
		n, err := s.EvictChunksForPage(ctx, id, keepPerPage)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// evictionTarget computes how many rows to evict: the overage beyond the cap
// plus a fixed fraction of the current count, rounded up. The fraction
// applies even with no overage, so a triggered pass always frees headroom.
func evictionTarget(count, limit int) int {
	if count <= 0 {
		return 0
	}
	over := count - limit
	if over < 0 {
		over = 0
	}
	n := int(math.Ceil(float64(over) + float64(count)*evictionPercentage))
	if n > count {
		n = count
	}
	return n
}

func countRows(ctx context.Context, tx *sql.Tx, table string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}

// evictPagesLRU removes the n least-recently-accessed pages with their
// chunks and images. Returns pages removed and chunks cascaded.
func evictPagesLRU(ctx context.Context, tx *sql.Tx, n int) (int, int, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT page_id FROM pages ORDER BY last_accessed ASC, page_id ASC LIMIT ?", n)
	if err != nil {
		return 0, 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}

	ph := placeholders(len(ids))
	args := idArgs(ids)
	res, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE page_id IN ("+ph+")", args...)
	if err != nil {
		return 0, 0, err
	}
	cascaded, err := res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM images WHERE page_id IN ("+ph+")", args...); err != nil {
		return 0, 0, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM pages WHERE page_id IN ("+ph+")", args...); err != nil {
		return 0, 0, err
	}
	return len(ids), int(cascaded), nil
}

// evictChunksLRU removes the n least-recently-accessed chunks regardless of
// owning page.
func evictChunksLRU(ctx context.Context, tx *sql.Tx, n int) (int, error) {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM chunks WHERE chunk_id IN (
			SELECT chunk_id FROM chunks
			ORDER BY last_accessed ASC, chunk_id ASC
			LIMIT ?
		)`, n)
	if err != nil {
		return 0, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}
