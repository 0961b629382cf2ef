// Package compress provides the compression codecs used for persisted
// search-index snapshot blobs.
//
// Snapshot rows record the compressor name alongside the blob, so loads are
// self-describing: the store selects the compressor by name on read.
package compress

import "fmt"

// Compressor compresses/decompresses byte blobs.
// Implementations must be safe for concurrent use.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Name() string
}

// ByName returns a built-in compressor by its stable name.
func ByName(name string) (Compressor, error) {
	switch name {
	case "none":
		return None{}, nil
	case "zstd":
		return Zstd{}, nil
	case "lz4":
		return LZ4{}, nil
	default:
		return nil, fmt.Errorf("compress: unknown compressor %q", name)
	}
}

// Default is the compressor used for newly written snapshots.
var Default Compressor = Zstd{}

// None is the identity compressor.
type None struct{}

// Compress returns data unchanged.
func (None) Compress(data []byte) ([]byte, error) { return data, nil }

// Decompress returns data unchanged.
func (None) Decompress(data []byte) ([]byte, error) { return data, nil }

// Name returns "none".
func (None) Name() string { return "none" }
