package pagestash

import (
	"context"
	"fmt"

	"github.com/pagestash/pagestash/compress"
	"github.com/pagestash/pagestash/model"
)

// settingsKeyCurrentIndex records the active search-index snapshot version,
// decoupling "latest written" from "active".
const settingsKeyCurrentIndex = "search_index_current"

// SaveSearchIndex persists one serialized full-text index generation keyed
// by version, then records the version as current. These are two separate
// writes, not one transaction; a crash between them leaves the pointer one
// generation behind (accepted, the snapshot row itself is intact).
//
// The blob is compressed with the configured compressor; the compressor name
// is stored in the row so loads are self-describing.
func (s *Store) SaveSearchIndex(ctx context.Context, version int64, blob []byte, docCount int) error {
	eng, err := s.engineHandle()
	if err != nil {
		return err
	}
	start := s.clock()

	if err := s.resources.AcquireMemory(ctx, int64(len(blob))); err != nil {
		return err
	}
	defer s.resources.ReleaseMemory(int64(len(blob)))

	compressed, err := s.compressor.Compress(blob)
	if err != nil {
		return fmt.Errorf("pagestash: compress snapshot v%d: %w", version, err)
	}
	approxBytes := int64(len(compressed))

	_, err = eng.DB().ExecContext(ctx, `
		INSERT INTO search_index_snapshots (version, blob, codec, doc_count, persisted_at, approx_bytes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET
			blob = excluded.blob,
			codec = excluded.codec,
			doc_count = excluded.doc_count,
			persisted_at = excluded.persisted_at,
			approx_bytes = excluded.approx_bytes`,
		version, compressed, s.compressor.Name(), docCount, s.nowMillis(), approxBytes)
	err = translateError(err)
	s.metrics.RecordSnapshotSave(approxBytes, s.clock().Sub(start), err)
	s.logger.LogSnapshot(ctx, version, approxBytes, err)
	if err != nil {
		return err
	}

	return SetSetting(ctx, s, settingsKeyCurrentIndex, version)
}

// LoadSearchIndex returns the snapshot for the given version with the blob
// decompressed, or ErrNotFound.
func (s *Store) LoadSearchIndex(ctx context.Context, version int64) (*model.IndexSnapshot, error) {
	eng, err := s.engineHandle()
	if err != nil {
		return nil, err
	}

	var snap model.IndexSnapshot
	err = eng.DB().QueryRowContext(ctx, `
		SELECT version, blob, codec, doc_count, persisted_at, approx_bytes
		FROM search_index_snapshots WHERE version = ?`, version).
		Scan(&snap.Version, &snap.Blob, &snap.Codec, &snap.DocCount, &snap.PersistedAt, &snap.ApproxBytes)
	if err != nil {
		return nil, translateError(err)
	}

	comp, err := compress.ByName(snap.Codec)
	if err != nil {
		return nil, fmt.Errorf("pagestash: snapshot v%d: %w", version, err)
	}
	snap.Blob, err = comp.Decompress(snap.Blob)
	if err != nil {
		return nil, fmt.Errorf("pagestash: decompress snapshot v%d: %w", version, err)
	}
	return &snap, nil
}

// DeleteSearchIndex removes one snapshot generation. Unknown versions are
// tolerated.
func (s *Store) DeleteSearchIndex(ctx context.Context, version int64) error {
	eng, err := s.engineHandle()
	if err != nil {
		return err
	}
	_, err = eng.DB().ExecContext(ctx,
		"DELETE FROM search_index_snapshots WHERE version = ?", version)
	return translateError(err)
}

// CurrentSearchIndexVersion returns the version recorded as active, or
// ErrNotFound when no snapshot has been saved yet.
func (s *Store) CurrentSearchIndexVersion(ctx context.Context) (int64, error) {
	v, ok, err := GetSetting[int64](ctx, s, settingsKeyCurrentIndex)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: no current search index", ErrNotFound)
	}
	return v, nil
}
