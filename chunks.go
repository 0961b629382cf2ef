package pagestash

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pagestash/pagestash/engine"
	"github.com/pagestash/pagestash/model"
)

// defaultBatchSize is the fixed batch size shared by all bulk writers. Bulk
// calls are atomic per batch, not across the whole call; the gap between
// batches is a deliberate backpressure point.
const defaultBatchSize = 50

const chunkColumns = "chunk_id, page_id, url, chunk_index, token_length, text, embedding, created_at, last_accessed"

// BulkPutChunks writes chunks in fixed-size batches. On a quota-exceeded
// signal from the engine it runs one eviction pass and retries the batch
// sequence exactly once; a second failure propagates as ErrQuotaExceeded.
func (s *Store) BulkPutChunks(ctx context.Context, chunks []model.Chunk) error {
	start := s.clock()
	retried := false

	err := s.bulkPutChunks(ctx, chunks)
	if errors.Is(err, engine.ErrQuotaExceeded) {
		retried = true
		stats, evictErr := s.HandleQuotaExceeded(ctx)
		if evictErr != nil {
			s.metrics.RecordBulkPut("chunks", len(chunks), retried, s.clock().Sub(start), evictErr)
			return evictErr
		}
		s.logger.LogQuotaRecovery(ctx, "chunks", stats.PagesEvicted, stats.ChunksEvicted)
		err = s.bulkPutChunks(ctx, chunks)
	}

	err = translateError(err)
	s.metrics.RecordBulkPut("chunks", len(chunks), retried, s.clock().Sub(start), err)
	s.logger.LogBulkPut(ctx, "chunks", len(chunks), batchCount(len(chunks), s.batchSize), err)
	return err
}

func (s *Store) bulkPutChunks(ctx context.Context, chunks []model.Chunk) error {
	eng, err := s.engineHandle()
	if err != nil {
		return err
	}

	now := s.nowMillis()
	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		batch := chunks[start:end]

		if err := s.resources.AcquireWrite(ctx, batchBytes(batch)); err != nil {
			return err
		}

		err := eng.WithTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO chunks (`+chunkColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(chunk_id) DO UPDATE SET
					page_id = excluded.page_id,
					url = excluded.url,
					chunk_index = excluded.chunk_index,
					token_length = excluded.token_length,
					text = excluded.text,
					embedding = excluded.embedding,
					last_accessed = excluded.last_accessed`)
			if err != nil {
				return err
			}
			defer stmt.Close()

			for _, c := range batch {
				createdAt := c.CreatedAt
				if createdAt == 0 {
					createdAt = now
				}
				lastAccessed := c.LastAccessed
				if lastAccessed == 0 {
					lastAccessed = now
				}
				if _, err := stmt.ExecContext(ctx,
					c.ID, c.PageID, c.URL, c.ChunkIndex, c.TokenLength, c.Text,
					model.EncodeVector(c.Embedding), createdAt, lastAccessed,
				); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ListChunksByPage returns the page's chunks ordered by chunk index.
func (s *Store) ListChunksByPage(ctx context.Context, pageID string) ([]model.Chunk, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return nil, err
	}
	rows, err := eng.DB().QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE page_id = ? ORDER BY chunk_index ASC", pageID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var chunks []model.Chunk
	for rows.Next() {
		c, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// TouchChunks bulk-sets last-accessed for the given chunk ids in one update.
func (s *Store) TouchChunks(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	eng, err := s.engineHandle()
	if err != nil {
		return err
	}
	args := append([]any{s.nowMillis()}, idArgs(chunkIDs)...)
	_, err = eng.DB().ExecContext(ctx,
		"UPDATE chunks SET last_accessed = ? WHERE chunk_id IN ("+placeholders(len(chunkIDs))+")",
		args...)
	return translateError(err)
}

// EvictChunksForPage keeps the page's keepNewest highest-index chunks and
// deletes the rest. Returns the number evicted; 0 when already within
// budget.
func (s *Store) EvictChunksForPage(ctx context.Context, pageID string, keepNewest int) (int, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return 0, err
	}
	if keepNewest < 0 {
		keepNewest = 0
	}
	res, err := eng.DB().ExecContext(ctx, `
		DELETE FROM chunks WHERE chunk_id IN (
			SELECT chunk_id FROM chunks
			WHERE page_id = ?
			ORDER BY chunk_index DESC
			LIMIT -1 OFFSET ?
		)`, pageID, keepNewest)
	if err != nil {
		return 0, translateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func scanChunk(scan func(dest ...any) error) (model.Chunk, error) {
	var (
		c   model.Chunk
		buf []byte
	)
	err := scan(&c.ID, &c.PageID, &c.URL, &c.ChunkIndex, &c.TokenLength, &c.Text, &buf, &c.CreatedAt, &c.LastAccessed)
	if err != nil {
		return model.Chunk{}, err
	}
	c.Embedding, err = model.DecodeVector(buf)
	if err != nil {
		return model.Chunk{}, err
	}
	return c, nil
}

// batchBytes approximates a batch's write size for IO pacing.
func batchBytes(batch []model.Chunk) int {
	total := 0
	for _, c := range batch {
		total += len(c.Text) + len(c.Embedding)*4
	}
	return total
}

func batchCount(n, batchSize int) int {
	if n == 0 {
		return 0
	}
	return (n + batchSize - 1) / batchSize
}
