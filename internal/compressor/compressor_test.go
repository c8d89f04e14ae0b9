package compressor

import "testing"

func TestShouldSkipCompressionSniffsMagicBytes(t *testing.T) {
	gzip := []byte{0x1f, 0x8b, 0x08, 0x00}
	if !ShouldSkipCompression(gzip) {
		t.Fatalf("expected gzip-prefixed data to be skipped")
	}
	plain := []byte("plain chunk bytes that compress fine")
	if ShouldSkipCompression(plain) {
		t.Fatalf("expected plain bytes to not be skipped")
	}
}

func TestCompressDecompressRoundTrips(t *testing.T) {
	original := []byte("some chunk bytes repeated repeated repeated repeated")
	compressed, err := CompressChunk(original)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	decompressed, err := DecompressData(compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(decompressed) != string(original) {
		t.Fatalf("round trip mismatch: got %q", decompressed)
	}
}
