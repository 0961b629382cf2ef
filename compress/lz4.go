package compress

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

// LZ4 compresses blobs with the LZ4 frame format. Faster than zstd at a
// lower ratio; useful when snapshot writes are on a latency-sensitive path.
type LZ4 struct{}

// Compress encodes data as an LZ4 frame.
func (LZ4) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress decodes an LZ4 frame.
func (LZ4) Decompress(data []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(data))
	return io.ReadAll(zr)
}

// Name returns "lz4".
func (LZ4) Name() string { return "lz4" }
