package models

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// File is the captured body of one internal page or asset. The body is held
// gzip-compressed; construction always compresses and Body decompresses on
// demand without mutating stored state.
type File struct {
	Path        string
	ContentType string
	compressed  []byte
}

// NewFile captures body under path, compressing it immediately
func NewFile(path, contentType string, body []byte) (*File, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("compressing body for '%s': %w", path, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compressing body for '%s': %w", path, err)
	}
	return &File{Path: path, ContentType: contentType, compressed: buf.Bytes()}, nil
}

// FileFromCompressed rebuilds a File around an already-compressed body
// (used by the capture store's read path)
func FileFromCompressed(path, contentType string, compressed []byte) *File {
	return &File{Path: path, ContentType: contentType, compressed: compressed}
}

// Body returns the decompressed content. Calling it repeatedly yields
// identical bytes each time.
func (f *File) Body() ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(f.compressed))
	if err != nil {
		return nil, fmt.Errorf("decompressing '%s': %w", f.Path, err)
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompressing '%s': %w", f.Path, err)
	}
	return body, nil
}

// Compressed exposes the stored compressed bytes
func (f *File) Compressed() []byte {
	return f.compressed
}

// CompressedSize returns the stored (compressed) byte count
func (f *File) CompressedSize() int {
	return len(f.compressed)
}
