package pagestash

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/pagestash/pagestash/engine"
)

var (
	// ErrClosed is returned when an operation is invoked on a closed store.
	ErrClosed = errors.New("pagestash: store is closed")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("pagestash: not found")

	// ErrQuotaExceeded is returned when a bulk write fails even after an
	// eviction pass freed headroom.
	ErrQuotaExceeded = errors.New("pagestash: storage quota exceeded")
)

// translateError unifies engine and driver errors at the facade boundary.
// Errors with no local mapping propagate unmodified; interpreting them is
// the caller's concern.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, engine.ErrQuotaExceeded) {
		return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
	}
	if errors.Is(err, engine.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
