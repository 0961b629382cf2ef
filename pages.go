package pagestash

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/pagestash/pagestash/model"
)

const pageColumns = "page_id, url, domain, title, description, first_seen, last_updated, last_accessed"

// UpsertPage inserts or replaces a page by id. The domain is always derived
// from the URL at write time; FirstSeen is preserved on replace. Zero
// timestamps default to now. Idempotent.
func (s *Store) UpsertPage(ctx context.Context, p model.Page) error {
	eng, err := s.engineHandle()
	if err != nil {
		return err
	}

	u, err := url.Parse(p.URL)
	if err != nil {
		return fmt.Errorf("pagestash: upsert page %s: parse url: %w", p.ID, err)
	}
	p.Domain = NormalizeHostname(u.Hostname())

	now := s.nowMillis()
	if p.FirstSeen == 0 {
		p.FirstSeen = now
	}
	if p.LastUpdated == 0 {
		p.LastUpdated = now
	}
	if p.LastAccessed == 0 {
		p.LastAccessed = now
	}

	_, err = eng.DB().ExecContext(ctx, `
		INSERT INTO pages (`+pageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(page_id) DO UPDATE SET
			url = excluded.url,
			domain = excluded.domain,
			title = excluded.title,
			description = excluded.description,
			last_updated = excluded.last_updated,
			last_accessed = excluded.last_accessed`,
		p.ID, p.URL, p.Domain, nullable(p.Title), nullable(p.Description),
		p.FirstSeen, p.LastUpdated, p.LastAccessed,
	)
	if err != nil {
		return translateError(fmt.Errorf("pagestash: upsert page %s: %w", p.ID, err))
	}
	return nil
}

// GetPageByID returns the page with the given id, or nil if absent.
func (s *Store) GetPageByID(ctx context.Context, pageID string) (*model.Page, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return nil, err
	}
	row := eng.DB().QueryRowContext(ctx,
		"SELECT "+pageColumns+" FROM pages WHERE page_id = ?", pageID)
	return scanPageOrNil(row)
}

// GetLatestPageByURL returns the most recently updated page for the URL, or
// nil if none exists. Multiple pages may share a URL when callers model
// re-crawls as new page ids; this store does not prevent that.
func (s *Store) GetLatestPageByURL(ctx context.Context, rawURL string) (*model.Page, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return nil, err
	}
	row := eng.DB().QueryRowContext(ctx,
		"SELECT "+pageColumns+" FROM pages WHERE url = ? ORDER BY last_updated DESC LIMIT 1", rawURL)
	return scanPageOrNil(row)
}

// ListPagesByDomain returns pages for the (normalized) domain.
// limit <= 0 means no cap.
func (s *Store) ListPagesByDomain(ctx context.Context, domain string, limit int) ([]model.Page, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := eng.DB().QueryContext(ctx,
		"SELECT "+pageColumns+" FROM pages WHERE domain = ? ORDER BY last_updated DESC LIMIT ?",
		NormalizeHostname(domain), limit)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()
	return scanPages(rows)
}

// TouchPage bumps the page's last-accessed time, keeping eviction recency
// accurate on read. Unknown ids are tolerated.
func (s *Store) TouchPage(ctx context.Context, pageID string) error {
	eng, err := s.engineHandle()
	if err != nil {
		return err
	}
	_, err = eng.DB().ExecContext(ctx,
		"UPDATE pages SET last_accessed = ? WHERE page_id = ?", s.nowMillis(), pageID)
	return translateError(err)
}

// DeletePages cascade-deletes the given pages in one transaction: all chunks
// and images owned by them first, then the page rows. Returns the count of
// ids processed (not necessarily rows that existed). An empty slice is a
// no-op returning 0.
func (s *Store) DeletePages(ctx context.Context, pageIDs []string) (int, error) {
	if len(pageIDs) == 0 {
		return 0, nil
	}
	eng, err := s.engineHandle()
	if err != nil {
		return 0, err
	}

	ph := placeholders(len(pageIDs))
	args := idArgs(pageIDs)
	err = eng.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE page_id IN ("+ph+")", args...); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM images WHERE page_id IN ("+ph+")", args...); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM pages WHERE page_id IN ("+ph+")", args...)
		return err
	})
	if err != nil {
		return 0, translateError(err)
	}
	return len(pageIDs), nil
}

func scanPage(scan func(dest ...any) error) (model.Page, error) {
	var (
		p           model.Page
		title, desc sql.NullString
	)
	err := scan(&p.ID, &p.URL, &p.Domain, &title, &desc, &p.FirstSeen, &p.LastUpdated, &p.LastAccessed)
	if err != nil {
		return model.Page{}, err
	}
	p.Title = title.String
	p.Description = desc.String
	return p, nil
}

func scanPageOrNil(row *sql.Row) (*model.Page, error) {
	p, err := scanPage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err)
	}
	return &p, nil
}

func scanPages(rows *sql.Rows) ([]model.Page, error) {
	var pages []model.Page
	for rows.Next() {
		p, err := scanPage(rows.Scan)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// nullable maps "" to NULL so optional text columns stay NULL-clean.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
