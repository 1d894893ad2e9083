package s3upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// maxErrorBody bounds how much of a non-2xx response body is kept for diagnostics.
const maxErrorBody = 64 << 10

// State is the lifecycle position of a Transfer.
type State int32

const (
	StateIdle State = iota
	StateBuilding
	StateInFlight
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateInFlight:
		return "in_flight"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether s is Completed, Failed or Cancelled.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// CompletionFunc receives the outcome of a transfer: nil on success, otherwise an
// *UploadError. It is invoked exactly once per transfer.
type CompletionFunc func(err error)

// Transfer is one upload attempt. It resolves exactly once; Done is closed after the
// completion callback has returned. A completion callback must not Wait on its own
// transfer.
type Transfer struct {
	bucket string
	key    string

	state  atomic.Int32
	cancel context.CancelCauseFunc

	once       sync.Once
	done       chan struct{}
	err        error
	onComplete CompletionFunc
	onFinish   func(*Transfer)
	executor   func(func())
	logger     *slog.Logger
	started    time.Time
}

func newTransfer(bucket, key string, onComplete CompletionFunc, executor func(func()), logger *slog.Logger) *Transfer {
	return &Transfer{
		bucket:     bucket,
		key:        key,
		done:       make(chan struct{}),
		onComplete: onComplete,
		executor:   executor,
		logger:     logger,
	}
}

// Bucket returns the destination bucket
func (t *Transfer) Bucket() string { return t.bucket }

// Key returns the destination key
func (t *Transfer) Key() string { return t.key }

// State returns the current lifecycle state
func (t *Transfer) State() State { return State(t.state.Load()) }

// Done is closed once the transfer has reached a terminal state and its callback has run.
func (t *Transfer) Done() <-chan struct{} { return t.done }

// Err returns the transfer result. It is only meaningful after Done is closed.
func (t *Transfer) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the transfer resolves or ctx ends. Ending ctx does not cancel the transfer.
func (t *Transfer) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel aborts an in-flight transfer. Cancelling an idle, building or finished
// transfer does nothing. The server may still have stored the object.
func (t *Transfer) Cancel() {
	if t.State() != StateInFlight {
		return
	}
	t.cancel(ErrCancelled)
}

// finish records the terminal state and dispatches the completion callback. Only the
// first call has any effect.
func (t *Transfer) finish(state State, err error) {
	t.once.Do(func() {
		t.err = err
		t.state.Store(int32(state))
		if t.cancel != nil {
			t.cancel(nil)
		}

		attrs := []any{"bucket", t.bucket, "key", t.key, "state", state.String()}
		if !t.started.IsZero() {
			attrs = append(attrs, "duration", time.Since(t.started))
		}
		switch state {
		case StateCompleted:
			t.logger.Info("upload completed", attrs...)
		default:
			t.logger.Warn("upload did not complete", append(attrs, "err", err)...)
		}

		if t.onFinish != nil {
			t.onFinish(t)
		}
		t.executor(func() {
			defer close(t.done)
			if t.onComplete != nil {
				t.onComplete(err)
			}
		})
	})
}

// transferController runs transfers against a Doer
type transferController struct {
	doer     Doer
	executor func(func())
	logger   *slog.Logger
}

// start builds the request synchronously, then sends it on a new goroutine. Build
// failures are reported through the same callback path as transport failures.
func (c *transferController) start(ctx context.Context, ur UploadRequest, build func(context.Context, UploadRequest) (*http.Request, error), onComplete CompletionFunc, onFinish func(*Transfer)) *Transfer {
	t := newTransfer(ur.Bucket, ur.Key, onComplete, c.executor, c.logger)
	t.onFinish = onFinish

	ctx, cancel := context.WithCancelCause(ctx)
	t.cancel = cancel

	t.state.Store(int32(StateBuilding))
	c.logger.Debug("building upload request", "bucket", ur.Bucket, "key", ur.Key)
	req, err := build(ctx, ur)
	if err != nil {
		go t.finish(StateFailed, err)
		return t
	}

	t.started = time.Now()
	t.state.Store(int32(StateInFlight))
	c.logger.Debug("upload in flight", "bucket", ur.Bucket, "key", ur.Key, "url", req.URL.Redacted())
	go c.run(ctx, t, req)
	return t
}

func (c *transferController) run(ctx context.Context, t *Transfer, req *http.Request) {
	resp, err := c.doer.Do(req)
	if err != nil {
		if cancelled(ctx) {
			t.finish(StateCancelled, cancelledError(ctx, t, err))
			return
		}
		t.finish(StateFailed, newUploadError(ErrTransport, opPutObject, t.bucket, t.key, transportCause(ctx, err)))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		t.finish(StateCompleted, nil)
		return
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil && cancelled(ctx) {
		t.finish(StateCancelled, cancelledError(ctx, t, readErr))
		return
	}
	se := newServerError(resp.StatusCode, resp.Header, body)
	t.finish(StateFailed, newUploadError(ErrServer, opPutObject, t.bucket, t.key, se))
}

// cancelled reports whether ctx ended because someone asked to stop the transfer,
// either through Transfer.Cancel or by cancelling the caller's context. Deadlines
// are not cancellations.
func cancelled(ctx context.Context) bool {
	if ctx.Err() == nil {
		return false
	}
	cause := context.Cause(ctx)
	return errors.Is(cause, ErrCancelled) || errors.Is(cause, context.Canceled)
}

// cancelledError wraps the context error so both ErrCancelled and context.Canceled match.
func cancelledError(ctx context.Context, t *Transfer, cause error) error {
	err := ctx.Err()
	if err == nil {
		err = cause
	}
	if c := context.Cause(ctx); c != nil && !errors.Is(c, ErrCancelled) && !errors.Is(err, c) {
		err = fmt.Errorf("%w: %w", err, c)
	}
	return newUploadError(ErrCancelled, opPutObject, t.bucket, t.key, err)
}

// transportCause makes a context deadline visible through errors.Is even when the
// transport reports it under its own error type.
func transportCause(ctx context.Context, err error) error {
	if ctx.Err() == nil || errors.Is(err, ctx.Err()) {
		return err
	}
	return fmt.Errorf("%w: %w", err, ctx.Err())
}

// inlineExecutor runs callbacks on the calling goroutine
func inlineExecutor(fn func()) { fn() }
