// Package engine provides the transactional record store underneath the
// pagestash repositories.
//
// The engine wraps a single SQLite database (pure-Go modernc.org/sqlite) and
// exposes the narrow contract the repositories rely on: named tables with
// secondary indexes, multi-table atomic transactions, and a distinct
// quota-exceeded signal. Cascade and eviction logic in the facade assumes
// WithTx atomicity across every table it touches.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrQuotaExceeded is returned when a write fails because the database
	// hit its configured page budget (SQLITE_FULL).
	ErrQuotaExceeded = errors.New("engine: storage quota exceeded")

	// ErrClosed is returned when the engine has been closed.
	ErrClosed = errors.New("engine: closed")
)

// Options configure the engine.
type Options struct {
	// MaxDBPages bounds the database file size via PRAGMA max_page_count.
	// Writes beyond the bound fail with ErrQuotaExceeded. Zero leaves the
	// SQLite default (effectively unbounded).
	MaxDBPages int64

	// BusyTimeoutMillis is the SQLITE busy timeout. Defaults to 5000.
	BusyTimeoutMillis int
}

// DefaultOptions are the options used when none are supplied.
var DefaultOptions = Options{
	BusyTimeoutMillis: 5000,
}

// Engine is a handle to the underlying SQLite database.
type Engine struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and migrates it to the
// current schema generation. Use ":memory:" for an in-memory database.
// A migration failure is fatal: the engine does not open.
func Open(path string, optFns ...func(o *Options)) (*Engine, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("engine: open %q: %w", path, err)
	}

	// SQLite allows one writer; serializing through a single connection
	// avoids SQLITE_BUSY churn and keeps transactions strictly ordered.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", opts.BusyTimeoutMillis),
	}
	if opts.MaxDBPages > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA max_page_count=%d", opts.MaxDBPages))
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("engine: %s: %w", p, err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("engine: migrate %q: %w", path, err)
	}

	return &Engine{db: db, path: path}, nil
}

// DB exposes the underlying database for queries.
func (e *Engine) DB() *sql.DB { return e.db }

// Path returns the database file path ("" or ":memory:" for in-memory).
func (e *Engine) Path() string { return e.path }

// WithTx runs fn inside one transaction. The transaction is committed when
// fn returns nil and rolled back otherwise. Errors are passed through
// MapError so quota exhaustion surfaces as ErrQuotaExceeded.
func (e *Engine) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return MapError(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return MapError(err)
	}
	return MapError(tx.Commit())
}

// Close shuts down the database.
func (e *Engine) Close() error {
	return e.db.Close()
}

// MapError normalizes driver errors. SQLITE_FULL (the database page budget
// or the disk is exhausted) maps to ErrQuotaExceeded; everything else is
// passed through unmodified.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_FULL {
		return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
	}
	return err
}
