package s3upload

import (
	"context"
	"log/slog"
)

// UploadData is the one-shot form of (*Client).UploadData. It builds a throwaway
// Client from the explicit credentials and bucket; nothing is shared between calls.
// Configuration errors are delivered through onComplete like any other failure.
func UploadData(ctx context.Context, creds Credentials, bucket string, data []byte, key, contentType string, opts UploadOptions, onComplete CompletionFunc, clientOpts ...Option) *Transfer {
	c, err := New(creds, bucket, clientOpts...)
	if err != nil {
		return failedTransfer(bucket, key, err, onComplete, clientOpts)
	}
	return c.UploadData(ctx, data, key, contentType, opts, onComplete)
}

// UploadFile is the one-shot form of (*Client).UploadFile.
func UploadFile(ctx context.Context, creds Credentials, bucket string, path, key string, opts UploadOptions, onComplete CompletionFunc, clientOpts ...Option) *Transfer {
	c, err := New(creds, bucket, clientOpts...)
	if err != nil {
		return failedTransfer(bucket, key, err, onComplete, clientOpts)
	}
	return c.UploadFile(ctx, path, key, opts, onComplete)
}

// failedTransfer resolves a transfer that never got a client. The executor and logger
// options are still honored.
func failedTransfer(bucket, key string, err error, onComplete CompletionFunc, clientOpts []Option) *Transfer {
	probe := &Client{executor: inlineExecutor, logger: slog.Default()}
	for _, opt := range clientOpts {
		opt(probe)
	}
	if ue, ok := err.(*UploadError); ok {
		ue.Key = key
	}
	t := newTransfer(bucket, key, onComplete, probe.executor, probe.logger)
	go t.finish(StateFailed, err)
	return t
}
