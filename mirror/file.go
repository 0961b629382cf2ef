package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileMirror persists the snapshot as one small JSON file, written atomically
// via rename. Readers in other processes can stat/read the file without
// touching the engine. The sequence number survives process restarts because
// it is recovered from the file on first write.
type FileMirror struct {
	mu   sync.Mutex
	path string
	seq  uint64
	// seqLoaded guards the one-time recovery of seq from an existing file.
	seqLoaded bool
}

// NewFileMirror creates a file-backed mirror at path.
func NewFileMirror(path string) *FileMirror {
	return &FileMirror{path: path}
}

// Put replaces the snapshot atomically.
func (m *FileMirror) Put(_ context.Context, snap Snapshot) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.seqLoaded {
		if prev, err := m.read(); err == nil {
			m.seq = prev.Seq
		}
		m.seqLoaded = true
	}

	m.seq++
	snap.Seq = m.seq

	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("mirror: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("mirror: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".mirror-*")
	if err != nil {
		return 0, fmt.Errorf("mirror: create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("mirror: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("mirror: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, fmt.Errorf("mirror: rename: %w", err)
	}
	return m.seq, nil
}

// Get returns the latest snapshot.
func (m *FileMirror) Get(_ context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read()
}

// Clear removes the snapshot file and resets the sequence.
func (m *FileMirror) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq = 0
	m.seqLoaded = true
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("mirror: remove: %w", err)
	}
	return nil
}

func (m *FileMirror) read() (Snapshot, error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("mirror: read: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("mirror: decode: %w", err)
	}
	return snap, nil
}
