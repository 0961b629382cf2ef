package pagestash

import (
	"log/slog"
	"time"

	"github.com/pagestash/pagestash/blobstore"
	"github.com/pagestash/pagestash/codec"
	"github.com/pagestash/pagestash/compress"
	"github.com/pagestash/pagestash/mirror"
	"github.com/pagestash/pagestash/resource"
)

type options struct {
	codec            codec.Codec
	compressor       compress.Compressor
	logger           *Logger
	metricsCollector MetricsCollector
	clock            func() time.Time
	maxPages         int
	maxChunks        int
	batchSize        int
	maxDBPages       int64
	mirror           mirror.Mirror
	modelCache       blobstore.BlobStore
	resources        *resource.Controller
}

// Option configures Open behavior.
type Option func(*options)

// WithCodec configures the codec used for settings and queue payloads.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompressor configures the compressor for newly written search-index
// snapshot blobs. Existing snapshots record their compressor name and are
// decoded with it regardless of this setting.
//
// If nil is passed, compress.Default is used.
func WithCompressor(c compress.Compressor) Option {
	return func(o *options) {
		if c == nil {
			c = compress.Default
		}
		o.compressor = c
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithClock overrides the store's time source. Intended for tests that need
// deterministic timestamps; defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithQuota overrides the page and chunk row caps that drive eviction.
// Zero values keep the defaults (DefaultMaxPages, DefaultMaxChunks).
func WithQuota(maxPages, maxChunks int) Option {
	return func(o *options) {
		if maxPages > 0 {
			o.maxPages = maxPages
		}
		if maxChunks > 0 {
			o.maxChunks = maxChunks
		}
	}
}

// WithBatchSize overrides the fixed batch size shared by all bulk writers.
// Callers must not assume atomicity across a whole bulk call, only within
// each batch.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithMaxDBPages bounds the database file size via the engine's page budget.
// Writes beyond the bound fail with a quota error, which bulk chunk writes
// recover from by evicting and retrying once.
func WithMaxDBPages(n int64) Option {
	return func(o *options) {
		o.maxDBPages = n
	}
}

// WithMirror configures the low-latency settings mirror written through on
// every settings update. Without a mirror, settings writes skip the
// mirroring step.
func WithMirror(m mirror.Mirror) Option {
	return func(o *options) {
		o.mirror = m
	}
}

// WithModelCache configures the blob store holding the host's cached-model
// blobs. WipeAllData deletes "model/"-prefixed blobs from it when asked to
// remove the model.
func WithModelCache(bs blobstore.BlobStore) Option {
	return func(o *options) {
		o.modelCache = bs
	}
}

// WithResourceController configures resource budgets (write pacing, snapshot
// memory, background maintenance slots). Without one, no limits apply.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		compressor:       compress.Default,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		clock:            time.Now,
		maxPages:         DefaultMaxPages,
		maxChunks:        DefaultMaxChunks,
		batchSize:        defaultBatchSize,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
