package s3upload

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
)

// Error kinds. Every error delivered to a completion callback wraps exactly one of these.
var (
	// ErrConfiguration covers missing credentials, a missing bucket, or an invalid key.
	ErrConfiguration = errors.New("s3upload: configuration error")

	// ErrIO indicates the payload could not be produced: the file could not be read or
	// the Compressor failed to encode it.
	ErrIO = errors.New("s3upload: io error")

	// ErrSigning indicates the authorization token could not be produced
	ErrSigning = errors.New("s3upload: signing error")

	// ErrTransport indicates a connection, DNS or TLS failure
	ErrTransport = errors.New("s3upload: transport error")

	// ErrServer indicates the service answered with a non-2xx status
	ErrServer = errors.New("s3upload: server error")

	// ErrCancelled indicates the transfer was cancelled before it completed
	ErrCancelled = errors.New("s3upload: transfer cancelled")
)

// Specific configuration failures, wrapped in an *UploadError of kind ErrConfiguration.
var (
	ErrMissingCredentials = errors.New("s3upload: access key id and secret access key are required")
	ErrMissingBucket      = errors.New("s3upload: bucket name is required")
	ErrEmptyKey           = errors.New("s3upload: object key is required")
	ErrKeyHasLeadingSlash = errors.New("s3upload: object key must not begin with '/'")
	ErrMissingContentType = errors.New("s3upload: content type could not be determined")
)

// UploadError is the single error value reported for a failed transfer.
type UploadError struct {
	Kind   error
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s %s/%s", e.Kind, e.Op, e.Bucket, e.Key)
	}
	return fmt.Sprintf("%v: %s %s/%s: %v", e.Kind, e.Op, e.Bucket, e.Key, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *UploadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newUploadError(kind error, op, bucket, key string, err error) *UploadError {
	return &UploadError{Kind: kind, Op: op, Bucket: bucket, Key: key, Err: err}
}

// ServerError describes a non-2xx response from the object store.
type ServerError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	HostID     string
	Body       []byte
}

var _ smithy.APIError = (*ServerError)(nil)

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("status %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ErrorCode returns the service error code, or the HTTP status text when the body had none.
func (e *ServerError) ErrorCode() string {
	if e.Code != "" {
		return e.Code
	}
	return http.StatusText(e.StatusCode)
}

func (e *ServerError) ErrorMessage() string { return e.Message }

func (e *ServerError) ErrorFault() smithy.ErrorFault {
	switch {
	case e.StatusCode >= 500:
		return smithy.FaultServer
	case e.StatusCode >= 400:
		return smithy.FaultClient
	default:
		return smithy.FaultUnknown
	}
}

type errorDocument struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	RequestID string   `xml:"RequestId"`
	HostID    string   `xml:"HostId"`
}

// newServerError builds a ServerError from a response status and body. The S3 XML error
// document is decoded when present; the raw body is always retained.
func newServerError(status int, header http.Header, body []byte) *ServerError {
	se := &ServerError{StatusCode: status, Body: body}
	if header != nil {
		se.RequestID = header.Get("x-amz-request-id")
		se.HostID = header.Get("x-amz-id-2")
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return se
	}

	var doc errorDocument
	if err := xml.Unmarshal(trimmed, &doc); err != nil {
		return se
	}
	se.Code = doc.Code
	se.Message = doc.Message
	if doc.RequestID != "" {
		se.RequestID = doc.RequestID
	}
	if doc.HostID != "" {
		se.HostID = doc.HostID
	}
	return se
}

// IsCancelled reports whether err marks a cancelled transfer
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsServerError reports whether err carries a non-2xx response
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// StatusCode returns the HTTP status carried by err, or 0 when there is none.
func StatusCode(err error) int {
	var se *ServerError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
