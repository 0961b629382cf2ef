package pagestash

import (
	"context"
	"database/sql"
	"fmt"
)

// modelBlobPrefix is the namespace of cached embedding-model blobs in the
// configured model cache.
const modelBlobPrefix = "model/"

// WipeAllData clears every table in one transaction and re-seeds default
// settings. The downloaded embedding model is user data too, but re-fetching
// it is expensive, so its version pointer survives the wipe unless
// alsoRemoveModel is set; in that case the cached model blobs are deleted
// from the model cache as well.
//
// The settings mirror is cleared after the transaction commits; a crash in
// between leaves a stale mirror entry that the next settings update
// overwrites.
func (s *Store) WipeAllData(ctx context.Context, alsoRemoveModel bool) error {
	eng, err := s.engineHandle()
	if err != nil {
		return err
	}

	// Read before wiping so the preserved model version survives.
	prior, err := s.Settings(ctx)
	if err != nil {
		return err
	}

	fresh := defaultSettings()
	if !alsoRemoveModel {
		fresh.ModelVersion = prior.ModelVersion
	}
	raw, err := s.codec.Marshal(fresh)
	if err != nil {
		return fmt.Errorf("pagestash: wipe: encode settings: %w", err)
	}

	err = eng.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{
			"chunks", "images", "pages", "search_index_snapshots", "queue_items", "settings",
		} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO settings (key, value) VALUES (?, ?)", settingsKeyCurrent, raw)
		return err
	})
	if err != nil {
		err = translateError(err)
		s.logger.LogWipe(ctx, alsoRemoveModel, err)
		return err
	}

	if s.mirror != nil {
		if err := s.mirror.Clear(ctx); err != nil {
			s.logger.LogWipe(ctx, alsoRemoveModel, err)
			return fmt.Errorf("pagestash: wipe: clear mirror: %w", err)
		}
	}

	if alsoRemoveModel && s.modelCache != nil {
		names, err := s.modelCache.List(ctx, modelBlobPrefix)
		if err != nil {
			s.logger.LogWipe(ctx, alsoRemoveModel, err)
			return fmt.Errorf("pagestash: wipe: list model blobs: %w", err)
		}
		for _, name := range names {
			if err := s.modelCache.Delete(ctx, name); err != nil {
				s.logger.LogWipe(ctx, alsoRemoveModel, err)
				return fmt.Errorf("pagestash: wipe: delete model blob %s: %w", name, err)
			}
		}
	}

	s.logger.LogWipe(ctx, alsoRemoveModel, nil)
	return nil
}
