package s3upload

import "net/http"

// Doer sends a single HTTP request. *http.Client satisfies it. Implementations must honor
// the request context for cancellation.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Compressor produces a gzip-compatible encoding of a payload. Returning an error that
// wraps gzip.ErrAlreadyCompressed makes the builder send the payload unchanged.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// ContentTypeResolver maps a file name or key to a MIME type. It returns "" when
// it has no answer.
type ContentTypeResolver interface {
	ContentType(name string) string
}

// ContentTypeFunc adapts a function to ContentTypeResolver
type ContentTypeFunc func(name string) string

func (f ContentTypeFunc) ContentType(name string) string { return f(name) }

// DoerFunc adapts a function to Doer
type DoerFunc func(req *http.Request) (*http.Response, error)

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }
