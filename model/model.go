// Package model defines the persisted record types of the pagestash store.
//
// All timestamps are epoch milliseconds, matching the storage layer. Records
// are plain data carriers; lifecycle rules (cascades, eviction, state
// transitions) live in the store that owns them.
package model

// Page is one crawled document.
type Page struct {
	ID          string `json:"page_id"`
	URL         string `json:"url"`
	Domain      string `json:"domain"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// FirstSeen is immutable after the first write.
	FirstSeen int64 `json:"first_seen"`
	// LastUpdated is bumped on content change.
	LastUpdated int64 `json:"last_updated"`
	// LastAccessed is bumped on read/touch and drives LRU eviction.
	LastAccessed int64 `json:"last_accessed"`
}

// Chunk is one embedding-bearing text segment belonging to a Page.
//
// Chunks are immutable after creation except for LastAccessed. They are
// always removed together with their owning Page.
type Chunk struct {
	ID           string    `json:"chunk_id"`
	PageID       string    `json:"page_id"`
	URL          string    `json:"url"`
	ChunkIndex   int       `json:"chunk_index"`
	TokenLength  int       `json:"token_length"`
	Text         string    `json:"text"`
	Embedding    []float32 `json:"embedding"`
	CreatedAt    int64     `json:"created_at"`
	LastAccessed int64     `json:"last_accessed"`
}

// ChunkEmbedding pairs a chunk id with its embedding vector. It is the
// element type of the embedding stream used by index builders.
type ChunkEmbedding struct {
	ChunkID   string
	Embedding []float32
}

// Image is one image reference extracted from a Page. Images have no
// independent eviction policy; they only go away with their owning Page.
type Image struct {
	ID          string `json:"image_id"`
	URL         string `json:"url"`
	PageURL     string `json:"page_url"`
	PageID      string `json:"page_id"`
	CaptionText string `json:"caption_text,omitempty"`
}

// IndexSnapshot is one full-text index generation. Snapshots are written
// wholesale and never partially updated.
type IndexSnapshot struct {
	Version     int64
	Blob        []byte
	DocCount    int
	PersistedAt int64
	ApproxBytes int64
	// Codec names the compressor the blob was persisted with.
	Codec string
}

// QueueStatus enumerates the recorded states of a queue item. The store
// records transitions, it does not enforce the state machine.
type QueueStatus string

const (
	StatusPending QueueStatus = "pending"
	StatusRunning QueueStatus = "running"
	StatusDone    QueueStatus = "done"
	StatusFailed  QueueStatus = "failed"
)

// QueueItem is one unit of background work.
type QueueItem struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Status    QueueStatus `json:"status"`
	Priority  int         `json:"priority"`
	Payload   []byte      `json:"payload,omitempty"`
	CreatedAt int64       `json:"created_at"`
	UpdatedAt int64       `json:"updated_at"`
	Attempts  int         `json:"attempts"`
	LastError string      `json:"last_error,omitempty"`
}

// Settings is the structured privacy/app configuration stored under the
// distinguished "current" settings key.
type Settings struct {
	ModelVersion       *string  `json:"model_version"`
	Paused             bool     `json:"paused"`
	DomainAllowlist    []string `json:"domain_allowlist"`
	DomainDenylist     []string `json:"domain_denylist"`
	LastIndexPersistAt int64    `json:"last_index_persist_at,omitempty"`
}

// SettingsPatch is a partial settings update. Nil fields are left untouched;
// slice fields, when non-nil, replace the stored value wholesale (no merge).
type SettingsPatch struct {
	ModelVersion       *string
	Paused             *bool
	DomainAllowlist    []string
	DomainDenylist     []string
	LastIndexPersistAt *int64
}
