package s3upload

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/tendant/simple-upload/pkg/s3upload/gzip"
)

// Header names emitted by the builder.
const (
	HeaderStorageClass  = "x-amz-storage-class"
	HeaderSecurityToken = "x-amz-security-token"
	HeaderAmzDate       = "x-amz-date"
)

const opPutObject = "PutObject"

// StorageClassReducedRedundancy is the x-amz-storage-class value sent for ReducedRedundancy.
var StorageClassReducedRedundancy = string(types.StorageClassReducedRedundancy)

// protectedHeaders can never be supplied through UploadOptions.Headers.
var protectedHeaders = map[string]bool{
	"authorization":     true,
	"date":              true,
	"host":              true,
	"content-type":      true,
	"content-md5":       true,
	"content-length":    true,
	"transfer-encoding": true,
	HeaderAmzDate:       true,
	HeaderSecurityToken: true,
}

// Payload is the body of an upload: either an in-memory buffer or a file path.
type Payload struct {
	data []byte
	path string
}

// Bytes returns a Payload backed by data. The slice is not copied.
func Bytes(data []byte) Payload { return Payload{data: data} }

// File returns a Payload read from path when the request is built.
func File(path string) Payload { return Payload{path: path} }

// IsFile reports whether the payload refers to a file
func (p Payload) IsFile() bool { return p.path != "" }

// Path returns the file path of a file payload
func (p Payload) Path() string { return p.path }

func (p Payload) load() ([]byte, error) {
	if !p.IsFile() {
		return p.data, nil
	}
	// Files are read fully into memory; there is no incremental upload.
	return os.ReadFile(p.path)
}

// UploadRequest describes one object to put.
type UploadRequest struct {
	Payload     Payload
	Bucket      string
	Key         string
	ContentType string
	Options     UploadOptions
}

// ValidateKey rejects empty keys and keys that start with a path separator.
func ValidateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.HasPrefix(key, "/") {
		return ErrKeyHasLeadingSlash
	}
	return nil
}

// requestBuilder assembles signed PUT requests
type requestBuilder struct {
	signer       *Signer
	sessionToken string
	endpoint     string
	pathStyle    bool
	compressor   Compressor
	resolver     ContentTypeResolver
	progress     ProgressFunc
	now          func() time.Time
	logger       *slog.Logger
}

// build validates ur and returns a ready-to-send request bound to ctx. Errors are
// *UploadError values of kind ErrConfiguration, ErrIO or ErrSigning.
func (b *requestBuilder) build(ctx context.Context, ur UploadRequest) (*http.Request, error) {
	fail := func(kind error, err error) error {
		return newUploadError(kind, opPutObject, ur.Bucket, ur.Key, err)
	}

	if ur.Bucket == "" {
		return nil, fail(ErrConfiguration, ErrMissingBucket)
	}
	if err := ValidateKey(ur.Key); err != nil {
		return nil, fail(ErrConfiguration, err)
	}

	contentType := ur.ContentType
	if contentType == "" {
		name := ur.Key
		if ur.Payload.IsFile() {
			name = ur.Payload.Path()
		}
		contentType = b.resolver.ContentType(name)
	}
	if contentType == "" {
		return nil, fail(ErrConfiguration, ErrMissingContentType)
	}

	body, err := ur.Payload.load()
	if err != nil {
		return nil, fail(ErrIO, err)
	}

	header := make(http.Header)
	opts := ur.Options

	if opts.DetectGzip {
		compressed, err := b.compressor.Compress(body)
		switch {
		case err == nil:
			body = compressed
			header.Set("Content-Encoding", "gzip")
		case errors.Is(err, gzip.ErrAlreadyCompressed):
			// Stored as an opaque gzip file; no Content-Encoding so readers get the bytes verbatim.
			b.logger.Debug("payload already gzip-compressed, sending as-is", "key", ur.Key)
		default:
			return nil, fail(ErrIO, fmt.Errorf("compress payload: %w", err))
		}
	}
	if cc := opts.CacheControl(); cc != "" {
		header.Set("Cache-Control", cc)
	}
	if opts.ReducedRedundancy {
		header[HeaderStorageClass] = []string{StorageClassReducedRedundancy}
	}
	if b.sessionToken != "" {
		header[HeaderSecurityToken] = []string{b.sessionToken}
	}

	sum := md5.Sum(body)
	contentMD5 := base64.StdEncoding.EncodeToString(sum[:])
	date := b.now().UTC().Format(http.TimeFormat)

	header.Set("Content-Type", contentType)
	header.Set("Content-MD5", contentMD5)
	header.Set("Date", date)

	for _, h := range opts.Headers {
		if !mergeHeader(header, h) {
			b.logger.Debug("dropping extra header that collides with a computed header",
				"key", ur.Key, "header", h.Name)
		}
	}

	escapedKey := EscapeKey(ur.Key)
	sts := StringToSign{
		Method:      http.MethodPut,
		ContentMD5:  contentMD5,
		ContentType: contentType,
		Date:        date,
		Header:      header,
		Resource:    CanonicalResource(ur.Bucket, ur.Key),
	}
	authorization, err := b.signer.Sign(sts.String())
	if err != nil {
		if errors.Is(err, ErrMissingCredentials) {
			return nil, fail(ErrConfiguration, err)
		}
		return nil, fail(ErrSigning, err)
	}
	header.Set("Authorization", authorization)

	u := b.objectURL(opts.Scheme(), ur.Bucket, ur.Key, escapedKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.String(), nil)
	if err != nil {
		return nil, fail(ErrConfiguration, err)
	}
	req.URL = u
	req.Host = u.Host
	req.Header = header

	total := int64(len(body))
	req.ContentLength = total
	req.Body = io.NopCloser(newProgressReader(bytes.NewReader(body), total, b.progress))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return req, nil
}

// objectURL returns {scheme}://{bucket}.{endpoint}/{key} or, in path style,
// {scheme}://{endpoint}/{bucket}/{key}.
func (b *requestBuilder) objectURL(scheme, bucket, key, escapedKey string) *url.URL {
	u := &url.URL{Scheme: scheme}
	if b.pathStyle {
		u.Host = b.endpoint
		u.Path = "/" + bucket + "/" + key
		u.RawPath = "/" + bucket + "/" + escapedKey
	} else {
		u.Host = bucket + "." + b.endpoint
		u.Path = "/" + key
		u.RawPath = "/" + escapedKey
	}
	return u
}

// mergeHeader adds h verbatim unless its name collides with a header that is already
// set or protected. It reports whether the header was added.
func mergeHeader(header http.Header, h Header) bool {
	name := strings.TrimSpace(h.Name)
	lower := strings.ToLower(name)
	if name == "" || protectedHeaders[lower] {
		return false
	}
	for existing := range header {
		if strings.EqualFold(existing, name) {
			return false
		}
	}
	header[name] = []string{h.Value}
	return true
}
