// Package gzip compresses upload payloads with github.com/klauspost/compress/gzip.
package gzip

import (
	"bytes"
	"errors"
	"fmt"

	kgzip "github.com/klauspost/compress/gzip"
)

// ErrAlreadyCompressed is returned when the payload is already a gzip stream.
var ErrAlreadyCompressed = errors.New("gzip: payload is already gzip-compressed")

// Compressor is a deterministic gzip encoder. The header carries no name or
// modification time, so equal inputs produce equal outputs.
type Compressor struct {
	level int
}

// Option configures a Compressor
type Option func(*Compressor)

// WithLevel sets the compression level (kgzip.HuffmanOnly through kgzip.BestCompression)
func WithLevel(level int) Option {
	return func(c *Compressor) {
		c.level = level
	}
}

// New creates a Compressor using the default compression level
func New(opts ...Option) *Compressor {
	c := &Compressor{level: kgzip.DefaultCompression}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compress returns the gzip encoding of data.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	if IsCompressed(data) {
		return nil, ErrAlreadyCompressed
	}

	var buf bytes.Buffer
	w, err := kgzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("gzip: invalid level %d: %w", c.level, err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip: close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress
func Decompress(data []byte) ([]byte, error) {
	r, err := kgzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// IsCompressed reports whether data starts with the gzip magic number
func IsCompressed(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}
