package compressor

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// magicPrefixes are the leading bytes of container formats that are
// already compressed or otherwise incompressible. Chunk IDs are bare
// UUIDs with no file extension, so the skip decision looks at the
// bytes themselves rather than a name.
var magicPrefixes = [][]byte{
	{0x1f, 0x8b},             // gzip
	{0x50, 0x4b, 0x03, 0x04}, // zip / jar / docx etc.
	{0xff, 0xd8, 0xff},       // jpeg
	{0x89, 0x50, 0x4e, 0x47}, // png
	{0x47, 0x49, 0x46, 0x38}, // gif
	{0x42, 0x5a, 0x68},       // bzip2
	{0x04, 0x22, 0x4d, 0x18}, // lz4 frame
	{0x52, 0x49, 0x46, 0x46}, // riff (webp/avi)
	{0x25, 0x50, 0x44, 0x46}, // pdf
}

// ShouldSkipCompression reports whether chunk bytes look already
// compressed, by sniffing the leading bytes of the data itself.
func ShouldSkipCompression(data []byte) bool {
	for _, magic := range magicPrefixes {
		if bytes.HasPrefix(data, magic) {
			return true
		}
	}
	return false
}

func CompressChunk(chunkData []byte) ([]byte, error) {
	var out bytes.Buffer
	writer := lz4.NewWriter(&out)
	// Optionally set defaults or leave as-is
	if _, err := writer.Write(chunkData); err != nil {
		return nil, fmt.Errorf("compression failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("compression close failed: %v", err)
	}
	return out.Bytes(), nil
}

func DecompressData(data []byte) ([]byte, error) {
	reader := lz4.NewReader(bytes.NewReader(data))
	var decompressed bytes.Buffer
	if _, err := io.Copy(&decompressed, reader); err != nil {
		return nil, fmt.Errorf("decompression failed: %v", err)
	}
	return decompressed.Bytes(), nil
}
