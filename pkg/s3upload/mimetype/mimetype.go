// Package mimetype resolves content types from file names.
package mimetype

import (
	"mime"
	"path"
	"strings"
)

// Default is returned when an extension is unknown.
const Default = "application/octet-stream"

// builtin covers common upload types whose mapping otherwise depends on the host's
// mime.types files.
var builtin = map[string]string{
	".txt":  "text/plain",
	".csv":  "text/csv",
	".log":  "text/plain",
	".md":   "text/markdown",
	".gz":   "application/gzip",
	".tgz":  "application/gzip",
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".ico":  "image/x-icon",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
}

// Resolver maps file names to MIME types
type Resolver struct {
	overrides map[string]string
	fallback  string
}

// Option configures a Resolver
type Option func(*Resolver)

// WithType maps an extension (with or without the leading dot) to a content type
func WithType(ext, contentType string) Option {
	return func(r *Resolver) {
		r.overrides[normalizeExt(ext)] = contentType
	}
}

// WithFallback sets the type returned for unknown extensions. An empty fallback makes
// ContentType return "" for them.
func WithFallback(contentType string) Option {
	return func(r *Resolver) {
		r.fallback = contentType
	}
}

// New creates a Resolver
func New(opts ...Option) *Resolver {
	r := &Resolver{
		overrides: make(map[string]string),
		fallback:  Default,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ContentType returns the MIME type for name based on its extension.
func (r *Resolver) ContentType(name string) string {
	ext := normalizeExt(path.Ext(name))
	if ext == "" {
		return r.fallback
	}
	if ct, ok := r.overrides[ext]; ok {
		return ct
	}
	if ct, ok := builtin[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return r.fallback
}

func normalizeExt(ext string) string {
	if ext == "" {
		return ""
	}
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
