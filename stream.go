package pagestash

import (
	"context"
	"database/sql"
	"iter"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/pagestash/pagestash/model"
)

// streamFetchSize is the number of rows fetched per query while streaming.
const streamFetchSize = 256

// StreamChunkEmbeddings yields every chunk's (id, embedding) pair in
// ascending rowid order, for rebuilding the vector index without holding all
// embeddings in memory at once.
//
// The set of rowids is snapshotted into a compressed bitmap up front, so
// chunks written after the stream starts are not yielded and chunks deleted
// mid-stream are skipped silently. The sequence is single-use: breaking out
// stops the underlying queries, and a fresh call takes a fresh snapshot.
func (s *Store) StreamChunkEmbeddings(ctx context.Context) iter.Seq2[model.ChunkEmbedding, error] {
	return func(yield func(model.ChunkEmbedding, error) bool) {
		eng, err := s.engineHandle()
		if err != nil {
			yield(model.ChunkEmbedding{}, err)
			return
		}

		snapshot := roaring64.New()
		rows, err := eng.DB().QueryContext(ctx, "SELECT rowid FROM chunks ORDER BY rowid ASC")
		if err != nil {
			yield(model.ChunkEmbedding{}, translateError(err))
			return
		}
		for rows.Next() {
			var rowid uint64
			if err := rows.Scan(&rowid); err != nil {
				rows.Close()
				yield(model.ChunkEmbedding{}, err)
				return
			}
			snapshot.Add(rowid)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			yield(model.ChunkEmbedding{}, err)
			return
		}

		it := snapshot.Iterator()
		batch := make([]uint64, 0, streamFetchSize)
		for {
			batch = batch[:0]
			for it.HasNext() && len(batch) < streamFetchSize {
				batch = append(batch, it.Next())
			}
			if len(batch) == 0 {
				return
			}

			args := make([]any, len(batch))
			for i, rid := range batch {
				args[i] = int64(rid)
			}
			// The batch is materialized before yielding so no *sql.Rows is
			// held open across the yield; callers may write to the store
			// from inside the loop without deadlocking the single
			// connection.
			fetched, err := fetchEmbeddings(ctx, eng.DB(), args)
			if err != nil {
				yield(model.ChunkEmbedding{}, err)
				return
			}
			for _, ce := range fetched {
				if !yield(ce, nil) {
					return
				}
			}
		}
	}
}

func fetchEmbeddings(ctx context.Context, db *sql.DB, rowids []any) ([]model.ChunkEmbedding, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT chunk_id, embedding FROM chunks WHERE rowid IN ("+placeholders(len(rowids))+") ORDER BY rowid ASC",
		rowids...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	out := make([]model.ChunkEmbedding, 0, len(rowids))
	for rows.Next() {
		var (
			ce  model.ChunkEmbedding
			buf []byte
		)
		if err := rows.Scan(&ce.ChunkID, &buf); err != nil {
			return nil, err
		}
		ce.Embedding, err = model.DecodeVector(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, ce)
	}
	return out, rows.Err()
}

// IteratePages yields pages in batches ordered by last-updated then id. Each
// yielded slice holds at most batchSize pages (default 100 when batchSize
// <= 0). Unlike StreamChunkEmbeddings the iteration is restartable: it
// pages by offset, so rows written mid-iteration may shift batch contents.
func (s *Store) IteratePages(ctx context.Context, batchSize int) iter.Seq2[[]model.Page, error] {
	if batchSize <= 0 {
		batchSize = 100
	}
	return func(yield func([]model.Page, error) bool) {
		eng, err := s.engineHandle()
		if err != nil {
			yield(nil, err)
			return
		}

		for offset := 0; ; offset += batchSize {
			rows, err := eng.DB().QueryContext(ctx, `
				SELECT `+pageColumns+` FROM pages
				ORDER BY last_updated ASC, page_id ASC
				LIMIT ? OFFSET ?`, batchSize, offset)
			if err != nil {
				yield(nil, translateError(err))
				return
			}
			pages, err := scanPages(rows)
			rows.Close()
			if err != nil {
				yield(nil, err)
				return
			}
			if len(pages) == 0 {
				return
			}
			if !yield(pages, nil) {
				return
			}
			if len(pages) < batchSize {
				return
			}
		}
	}
}
