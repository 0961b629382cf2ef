package mirror

import (
	"context"
	"sync"
)

// MemoryMirror is an in-memory Mirror implementation for tests and for hosts
// whose fast path lives in the same process as the store.
type MemoryMirror struct {
	mu   sync.RWMutex
	snap Snapshot
	seq  uint64
	set  bool
}

// NewMemoryMirror creates an empty in-memory mirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{}
}

// Put replaces the snapshot.
func (m *MemoryMirror) Put(_ context.Context, snap Snapshot) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	snap.Seq = m.seq
	m.snap = snap
	m.set = true
	return m.seq, nil
}

// Get returns the latest snapshot.
func (m *MemoryMirror) Get(_ context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.set {
		return Snapshot{}, ErrNotFound
	}
	return m.snap, nil
}

// Clear removes the snapshot and resets the sequence.
func (m *MemoryMirror) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snap = Snapshot{}
	m.seq = 0
	m.set = false
	return nil
}
