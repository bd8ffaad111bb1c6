package source

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func payload() []byte {
	b := make([]byte, 4096)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func gzipBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func zstdBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd.NewWriter: %v", err)
	}
	if _, err := w.Write(b); err != nil {
		t.Fatalf("zstd write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zstd close: %v", err)
	}
	return buf.Bytes()
}

func TestOpenReaderPlainPassesThroughUnchanged(t *testing.T) {
	want := payload()
	buf, err := OpenReader(bytes.NewReader(want), DecompressionPolicy{})
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer buf.Close()
	if !bytes.Equal(buf.Bytes(), want) {
		t.Error("plain input was not passed through byte-identical")
	}
}

func TestOpenReaderGzipDecodesToSameBytesAsPlain(t *testing.T) {
	want := payload()
	buf, err := OpenReader(bytes.NewReader(gzipBytes(t, want)), DecompressionPolicy{})
	if err != nil {
		t.Fatalf("OpenReader(gzip): %v", err)
	}
	defer buf.Close()
	if !bytes.Equal(buf.Bytes(), want) {
		t.Error("gzip-wrapped input did not decode to the plain-input bytes")
	}
}

func TestOpenReaderZstdDecodesToSameBytesAsPlain(t *testing.T) {
	want := payload()
	buf, err := OpenReader(bytes.NewReader(zstdBytes(t, want)), DecompressionPolicy{})
	if err != nil {
		t.Fatalf("OpenReader(zstd): %v", err)
	}
	defer buf.Close()
	if !bytes.Equal(buf.Bytes(), want) {
		t.Error("zstd-wrapped input did not decode to the plain-input bytes")
	}
}

func TestOpenReaderCorruptGzipStreamIsUnsupportedCompression(t *testing.T) {
	// A valid gzip magic followed by garbage: gzip.NewReader itself
	// should fail to parse the header/checksum structure.
	bad := append([]byte{0x1f, 0x8b}, []byte("not a real gzip stream")...)
	_, err := OpenReader(bytes.NewReader(bad), DecompressionPolicy{})
	if err == nil {
		t.Fatal("expected an error for a corrupt gzip stream")
	}
	var se *Error
	if !errors.As(err, &se) || se.Kind != KindUnsupportedCompression {
		t.Errorf("err kind = %v, want KindUnsupportedCompression", err)
	}
}

func TestOpenReaderSpillsToTempFileAboveInMemoryCeiling(t *testing.T) {
	want := payload()
	buf, err := OpenReader(bytes.NewReader(want), DecompressionPolicy{MaxInMemoryBytes: 16})
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Error("spilled buffer does not match original bytes")
	}
	if buf.temp == "" {
		t.Fatal("expected data above MaxInMemoryBytes to spill to a temp file")
	}
	tmpPath := buf.temp
	if _, err := os.Stat(tmpPath); err != nil {
		t.Fatalf("expected temp file to exist while Buffer is open: %v", err)
	}
	if err := buf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(tmpPath); !os.IsNotExist(err) {
		t.Error("expected Close to remove the scratch temp file")
	}
}

func TestOpenReaderMmapTempFileRoundTrips(t *testing.T) {
	want := payload()
	buf, err := OpenReader(bytes.NewReader(want), DecompressionPolicy{
		MaxInMemoryBytes: 16,
		PreferMmapTemp:   true,
	})
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer buf.Close()
	if !bytes.Equal(buf.Bytes(), want) {
		t.Error("mmap'd spill does not match original bytes")
	}
	if buf.closer == nil {
		t.Error("expected PreferMmapTemp to attach a closer for the mapped file")
	}
}

func TestMaterializeMaxTotalBytesAbortsInsteadOfSpilling(t *testing.T) {
	want := payload() // 4096 bytes
	_, err := OpenReader(bytes.NewReader(want), DecompressionPolicy{
		MaxInMemoryBytes: 16,
		MaxTotalBytes:    1024,
	})
	if err == nil {
		t.Fatal("expected an error when decompressed input exceeds MaxTotalBytes")
	}
	var se *Error
	if !errors.As(err, &se) || se.Kind != KindSizeLimitExceeded {
		t.Errorf("err kind = %v, want KindSizeLimitExceeded", err)
	}
}

func TestOpenRejectsNonRegularFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir, DecompressionPolicy{})
	if err == nil {
		t.Fatal("expected an error opening a directory as a .blend source")
	}
	var se *Error
	if !errors.As(err, &se) || se.Kind != KindNonSeekable {
		t.Errorf("err kind = %v, want KindNonSeekable", err)
	}
}

func TestOpenReadsRegularFile(t *testing.T) {
	want := payload()
	path := filepath.Join(t.TempDir(), "in.blend")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	buf, err := Open(path, DecompressionPolicy{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer buf.Close()
	if !bytes.Equal(buf.Bytes(), want) {
		t.Error("Open(path) did not return the file's exact bytes")
	}
}
