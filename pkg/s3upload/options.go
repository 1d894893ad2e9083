package s3upload

import (
	"log/slog"
	"net/http"
	"time"
)

// Cache-Control values emitted for the cache flags.
const (
	CacheControlNoCache   = "no-cache, no-store, must-revalidate"
	CacheControlPermanent = "public, max-age=315360000"
)

// Header is a single extra request header. Order and case are preserved.
type Header struct {
	Name  string
	Value string
}

// UploadOptions are the per-call switches of an upload. The zero value means no
// compression, default caching, standard redundancy and plain http.
type UploadOptions struct {
	// DetectGzip compresses the body with the configured Compressor and adds
	// Content-Encoding: gzip. A body that is already gzip is sent unchanged and
	// without Content-Encoding.
	DetectGzip bool

	// NoCache and PermanentCache select a Cache-Control directive. NoCache wins when both are set.
	NoCache        bool
	PermanentCache bool

	// ReducedRedundancy stores the object with the REDUCED_REDUNDANCY storage class.
	ReducedRedundancy bool

	// UseSecureTransport selects https.
	UseSecureTransport bool

	// Headers are merged after the computed headers. A header that names a computed or
	// protected header is dropped.
	Headers []Header
}

// CacheControl returns the resolved Cache-Control value, or "" when no cache flag is set.
func (o UploadOptions) CacheControl() string {
	switch {
	case o.NoCache:
		return CacheControlNoCache
	case o.PermanentCache:
		return CacheControlPermanent
	default:
		return ""
	}
}

// Scheme returns the URL scheme selected by UseSecureTransport.
func (o UploadOptions) Scheme() string {
	if o.UseSecureTransport {
		return "https"
	}
	return "http"
}

// ProgressFunc is called as the transport reads the request body.
// It receives the bytes sent so far and the total body length.
type ProgressFunc func(sent, total int64)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the transport used to send requests
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.doer = doer
		}
	}
}

// WithEndpoint replaces the storage service host (default "s3.amazonaws.com").
// The host may carry a port.
func WithEndpoint(host string) Option {
	return func(c *Client) {
		if host != "" {
			c.endpoint = host
		}
	}
}

// WithPathStyle addresses objects as {host}/{bucket}/{key} instead of {bucket}.{host}/{key}
func WithPathStyle() Option {
	return func(c *Client) {
		c.pathStyle = true
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used for the Date header and signature
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCompressor sets the compressor used when DetectGzip is set
func WithCompressor(compressor Compressor) Option {
	return func(c *Client) {
		if compressor != nil {
			c.compressor = compressor
		}
	}
}

// WithContentTypeResolver sets how content types are derived from file names and keys
func WithContentTypeResolver(resolver ContentTypeResolver) Option {
	return func(c *Client) {
		if resolver != nil {
			c.resolver = resolver
		}
	}
}

// WithProgress sets a progress callback for request bodies
func WithProgress(fn ProgressFunc) Option {
	return func(c *Client) {
		c.progress = fn
	}
}

// WithCallbackExecutor sets where completion callbacks run. The executor receives the
// callback invocation and must run it exactly once. By default callbacks run on the
// transfer's own goroutine.
func WithCallbackExecutor(executor func(func())) Option {
	return func(c *Client) {
		if executor != nil {
			c.executor = executor
		}
	}
}

// defaultHTTPClient has no overall timeout; timeouts belong to the caller's transport.
func defaultHTTPClient() *http.Client {
	return &http.Client{}
}
