package pagestash

import (
	"context"
	"database/sql"

	"github.com/pagestash/pagestash/model"
)

const imageColumns = "image_id, url, page_url, page_id, caption_text"

// BulkPutImages writes images in fixed-size batches. Unlike BulkPutChunks
// there is no quota-recovery wrapper: images are not subject to eviction,
// so a quota error propagates directly.
func (s *Store) BulkPutImages(ctx context.Context, images []model.Image) error {
	eng, err := s.engineHandle()
	if err != nil {
		return err
	}
	start := s.clock()

	for lo := 0; lo < len(images); lo += s.batchSize {
		hi := min(lo+s.batchSize, len(images))
		batch := images[lo:hi]

		if err := s.resources.AcquireWrite(ctx, imageBatchBytes(batch)); err != nil {
			return err
		}

		err := eng.WithTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO images (`+imageColumns+`)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(image_id) DO UPDATE SET
					url = excluded.url,
					page_url = excluded.page_url,
					page_id = excluded.page_id,
					caption_text = excluded.caption_text`)
			if err != nil {
				return err
			}
			defer stmt.Close()

			for _, img := range batch {
				if _, err := stmt.ExecContext(ctx,
					img.ID, img.URL, img.PageURL, img.PageID, nullable(img.CaptionText),
				); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			err = translateError(err)
			s.metrics.RecordBulkPut("images", len(images), false, s.clock().Sub(start), err)
			return err
		}
	}

	s.metrics.RecordBulkPut("images", len(images), false, s.clock().Sub(start), nil)
	s.logger.LogBulkPut(ctx, "images", len(images), batchCount(len(images), s.batchSize), nil)
	return nil
}

// ListImagesByPage returns the page's images.
func (s *Store) ListImagesByPage(ctx context.Context, pageID string) ([]model.Image, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return nil, err
	}
	rows, err := eng.DB().QueryContext(ctx,
		"SELECT "+imageColumns+" FROM images WHERE page_id = ?", pageID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var images []model.Image
	for rows.Next() {
		var (
			img     model.Image
			caption sql.NullString
		)
		if err := rows.Scan(&img.ID, &img.URL, &img.PageURL, &img.PageID, &caption); err != nil {
			return nil, err
		}
		img.CaptionText = caption.String
		images = append(images, img)
	}
	return images, rows.Err()
}

func imageBatchBytes(batch []model.Image) int {
	total := 0
	for _, img := range batch {
		total += len(img.URL) + len(img.CaptionText)
	}
	return total
}
