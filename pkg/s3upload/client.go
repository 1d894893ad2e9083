package s3upload

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tendant/simple-upload/pkg/s3upload/gzip"
	"github.com/tendant/simple-upload/pkg/s3upload/mimetype"
)

// DefaultEndpoint is the storage service host used when none is configured.
const DefaultEndpoint = "s3.amazonaws.com"

// Client uploads objects into a single bucket with fixed credentials.
//
// At most one transfer per Client is in flight. Starting a new upload cancels the
// current one first; the cancelled transfer still reports ErrCancelled through its
// own callback. Completion callbacks run on the transfer's goroutine unless
// WithCallbackExecutor says otherwise.
type Client struct {
	creds  Credentials
	bucket string

	doer       Doer
	endpoint   string
	pathStyle  bool
	compressor Compressor
	resolver   ContentTypeResolver
	progress   ProgressFunc
	executor   func(func())
	now        func() time.Time
	logger     *slog.Logger

	builder    *requestBuilder
	controller *transferController

	mu      sync.Mutex
	current *Transfer
	gen     uint64 // bumped by every upload call
}

// New creates a Client. Credentials and bucket are immutable afterwards.
func New(creds Credentials, bucket string, opts ...Option) (*Client, error) {
	signer, err := NewSigner(creds)
	if err != nil {
		return nil, newUploadError(ErrConfiguration, "NewClient", bucket, "", err)
	}
	if bucket == "" {
		return nil, newUploadError(ErrConfiguration, "NewClient", bucket, "", ErrMissingBucket)
	}

	c := &Client{
		creds:      creds,
		bucket:     bucket,
		doer:       defaultHTTPClient(),
		endpoint:   DefaultEndpoint,
		compressor: gzip.New(),
		resolver:   mimetype.New(),
		executor:   inlineExecutor,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "s3upload", "bucket", bucket)

	c.builder = &requestBuilder{
		signer:       signer,
		sessionToken: creds.SessionToken,
		endpoint:     c.endpoint,
		pathStyle:    c.pathStyle,
		compressor:   c.compressor,
		resolver:     c.resolver,
		progress:     c.progress,
		now:          c.now,
		logger:       c.logger,
	}
	c.controller = &transferController{
		doer:     c.doer,
		executor: c.executor,
		logger:   c.logger,
	}
	return c, nil
}

// Bucket returns the bucket the client writes to
func (c *Client) Bucket() string { return c.bucket }

// AccessKeyID returns the access key id the client signs with
func (c *Client) AccessKeyID() string { return c.creds.AccessKeyID }

// UploadData puts data under key. An empty contentType is resolved from the key's
// extension, falling back to application/octet-stream.
func (c *Client) UploadData(ctx context.Context, data []byte, key, contentType string, opts UploadOptions, onComplete CompletionFunc) *Transfer {
	return c.upload(ctx, UploadRequest{
		Payload:     Bytes(data),
		Bucket:      c.bucket,
		Key:         key,
		ContentType: contentType,
		Options:     opts,
	}, onComplete)
}

// UploadFile reads the file at path into memory and puts it under key. The content
// type is resolved from the file name.
func (c *Client) UploadFile(ctx context.Context, path, key string, opts UploadOptions, onComplete CompletionFunc) *Transfer {
	return c.upload(ctx, UploadRequest{
		Payload: File(path),
		Bucket:  c.bucket,
		Key:     key,
		Options: opts,
	}, onComplete)
}

// Upload runs an arbitrary request. The request's bucket is replaced by the client's.
func (c *Client) Upload(ctx context.Context, ur UploadRequest, onComplete CompletionFunc) *Transfer {
	ur.Bucket = c.bucket
	return c.upload(ctx, ur, onComplete)
}

// CancelCurrentTransfer cancels the in-flight transfer, if any.
func (c *Client) CancelCurrentTransfer() {
	c.mu.Lock()
	t := c.current
	c.mu.Unlock()

	if t != nil {
		c.logger.Debug("cancelling current transfer", "key", t.Key())
		t.Cancel()
	}
}

// CurrentTransfer returns the in-flight transfer, or nil.
func (c *Client) CurrentTransfer() *Transfer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Client) upload(ctx context.Context, ur UploadRequest, onComplete CompletionFunc) *Transfer {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	prev := c.current
	c.current = nil
	c.mu.Unlock()

	if prev != nil {
		c.logger.Info("replacing in-flight transfer", "previous_key", prev.Key(), "key", ur.Key)
		prev.Cancel()
	}

	// Building runs unlocked; a concurrent CancelCurrentTransfer sees no current
	// transfer and does nothing.
	t := c.controller.start(ctx, ur, c.builder.build, onComplete, c.release)

	c.mu.Lock()
	superseded := c.gen != gen
	if !superseded && !t.State().Terminal() {
		c.current = t
	}
	c.mu.Unlock()

	if superseded {
		c.logger.Info("transfer superseded while building", "key", ur.Key)
		t.Cancel()
	}
	return t
}

// release forgets t once it has finished
func (c *Client) release(t *Transfer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == t {
		c.current = nil
	}
}
