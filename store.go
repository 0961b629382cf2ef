package pagestash

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pagestash/pagestash/blobstore"
	"github.com/pagestash/pagestash/codec"
	"github.com/pagestash/pagestash/compress"
	"github.com/pagestash/pagestash/engine"
	"github.com/pagestash/pagestash/mirror"
	"github.com/pagestash/pagestash/resource"
)

type storeState int

const (
	stateUnopened storeState = iota
	stateOpen
	stateClosed
)

// Store is the durability core of the content-indexing application: pages,
// chunked embeddings, images, search-index snapshots, settings, and the
// background work queue, all under a hard row budget enforced by LRU
// eviction.
//
// A Store is an explicit handle constructed by Open and safe for concurrent
// use. There is no package-level instance; collaborators receive the handle
// by injection.
type Store struct {
	mu  sync.Mutex
	st  storeState
	eng *engine.Engine

	path       string
	codec      codec.Codec
	compressor compress.Compressor
	logger     *Logger
	metrics    MetricsCollector
	clock      func() time.Time
	mirror     mirror.Mirror
	modelCache blobstore.BlobStore
	resources  *resource.Controller

	maxPages  int
	maxChunks int
	batchSize int
}

// Open opens (or creates) the store at path and migrates the schema to the
// current generation. Use ":memory:" for an in-memory store. A migration
// failure is fatal: no partial-migration recovery is attempted.
func Open(path string, optFns ...Option) (*Store, error) {
	opts := applyOptions(optFns)

	eng, err := engine.Open(path, func(o *engine.Options) {
		o.MaxDBPages = opts.maxDBPages
	})
	if err != nil {
		return nil, fmt.Errorf("pagestash: open: %w", err)
	}

	return &Store{
		st:         stateOpen,
		eng:        eng,
		path:       path,
		codec:      opts.codec,
		compressor: opts.compressor,
		logger:     opts.logger,
		metrics:    opts.metricsCollector,
		clock:      opts.clock,
		mirror:     opts.mirror,
		modelCache: opts.modelCache,
		resources:  opts.resources,
		maxPages:   opts.maxPages,
		maxChunks:  opts.maxChunks,
		batchSize:  opts.batchSize,
	}, nil
}

// engineHandle returns the engine if the store is open.
func (s *Store) engineHandle() (*engine.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st != stateOpen {
		return nil, ErrClosed
	}
	return s.eng, nil
}

// nowMillis returns the current time in epoch milliseconds.
func (s *Store) nowMillis() int64 {
	return s.clock().UnixMilli()
}

// Close shuts down the store. Further operations return ErrClosed.
// Closing an already-closed store is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st != stateOpen {
		return nil
	}
	s.st = stateClosed
	return s.eng.Close()
}

// Reset closes the store and deletes the underlying database wholesale,
// including the WAL sidecar files. The handle stays closed; the next Open
// call constructs fresh state.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st == stateOpen {
		s.st = stateClosed
		if err := s.eng.Close(); err != nil {
			return fmt.Errorf("pagestash: reset close: %w", err)
		}
	}

	if s.path == "" || s.path == ":memory:" {
		return nil
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(s.path + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("pagestash: reset remove %s: %w", s.path+suffix, err)
		}
	}
	return nil
}

// placeholders returns a comma-joined list of n SQL placeholders.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}

// idArgs converts string ids to driver args.
func idArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
