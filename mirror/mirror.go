// Package mirror implements the low-latency settings mirror.
//
// The mirror is an eventually-consistent read replica of the privacy-relevant
// settings subset (paused state and domain lists). The store writes it
// through on every settings update; hot-path consumers (e.g. a per-request
// gatekeeper) read it directly instead of paying the engine's transaction
// overhead. Each write carries a monotonically increasing sequence number so
// readers can detect staleness across writes.
package mirror

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no snapshot has been written yet.
var ErrNotFound = errors.New("mirror: no snapshot")

// Snapshot is the mirrored settings subset. Seq is assigned by the mirror on
// write and increases by one per Put.
type Snapshot struct {
	Seq             uint64   `json:"seq"`
	Paused          bool     `json:"paused"`
	DomainAllowlist []string `json:"domain_allowlist"`
	DomainDenylist  []string `json:"domain_denylist"`
}

// Mirror is the write-through interface the store uses. Implementations must
// be safe for concurrent use.
type Mirror interface {
	// Put replaces the snapshot, assigning the next sequence number.
	// Any Seq set by the caller is ignored.
	Put(ctx context.Context, snap Snapshot) (uint64, error)

	// Get returns the latest snapshot, or ErrNotFound if none was written.
	Get(ctx context.Context) (Snapshot, error)

	// Clear removes the snapshot and resets the sequence.
	Clear(ctx context.Context) error
}
