package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Zstd compresses blobs with Zstandard at the default level. It offers the
// best ratio/speed trade-off for large serialized index blobs.
type Zstd struct{}

// Compress encodes data as a zstd stream.
func (Zstd) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress decodes a zstd stream.
func (Zstd) Decompress(data []byte) ([]byte, error) {
	zr, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// Name returns "zstd".
func (Zstd) Name() string { return "zstd" }
