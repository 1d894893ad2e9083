package s3upload

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.March, 4, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

var testCreds = Credentials{AccessKeyID: "AKIDTEST", SecretAccessKey: "test-secret"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingDoer answers every request with a fixed status and keeps what it was sent.
type recordingDoer struct {
	mu       sync.Mutex
	status   int
	body     string
	header   http.Header
	requests []*http.Request
	bodies   [][]byte
}

func newRecordingDoer(status int, body string) *recordingDoer {
	return &recordingDoer{status: status, body: body, header: make(http.Header)}
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	payload, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.bodies = append(d.bodies, payload)
	d.mu.Unlock()

	return &http.Response{
		StatusCode: d.status,
		Status:     http.StatusText(d.status),
		Header:     d.header,
		Body:       io.NopCloser(strings.NewReader(d.body)),
		Request:    req,
	}, nil
}

func (d *recordingDoer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

func (d *recordingDoer) last(t *testing.T) (*http.Request, []byte) {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.requests, "no request was sent")
	return d.requests[len(d.requests)-1], d.bodies[len(d.bodies)-1]
}

// blockingDoer holds every request until its context ends, then returns the context error.
type blockingDoer struct {
	started chan *http.Request
}

func newBlockingDoer() *blockingDoer {
	return &blockingDoer{started: make(chan *http.Request, 8)}
}

func (d *blockingDoer) Do(req *http.Request) (*http.Response, error) {
	d.started <- req
	<-req.Context().Done()
	return nil, req.Context().Err()
}

// routingDoer blocks requests for keys in hold and answers the rest with 200.
type routingDoer struct {
	hold    map[string]bool
	blocker *blockingDoer
	ok      *recordingDoer
}

func (d *routingDoer) Do(req *http.Request) (*http.Response, error) {
	key := strings.TrimPrefix(req.URL.Path, "/")
	if d.hold[key] {
		return d.blocker.Do(req)
	}
	return d.ok.Do(req)
}

// callbackRecorder counts completion callbacks and keeps their errors.
type callbackRecorder struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (r *callbackRecorder) fn(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.errs = append(r.errs, err)
}

func (r *callbackRecorder) snapshot() (int, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, append([]error(nil), r.errs...)
}

func waitTransfer(t *testing.T, tr *Transfer) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := tr.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "transfer did not resolve in time")
	return err
}

func waitStarted(t *testing.T, d *blockingDoer) *http.Request {
	t.Helper()
	select {
	case req := <-d.started:
		return req
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the transport")
		return nil
	}
}

func newTestClient(t *testing.T, doer Doer, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithHTTPClient(doer),
		WithClock(fixedClock),
		WithLogger(quietLogger()),
	}, opts...)
	c, err := New(testCreds, "test-bucket", opts...)
	require.NoError(t, err)
	return c
}
