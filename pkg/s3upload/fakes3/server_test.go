package fakes3

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/xml"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-upload/pkg/s3upload"
	"github.com/tendant/simple-upload/pkg/s3upload/gzip"
)

var serverCreds = s3upload.Credentials{AccessKeyID: "AKIDFAKE", SecretAccessKey: "fake-secret"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, creds s3upload.Credentials, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	opts = append([]Option{WithBuckets("uploads"), WithLogger(quietLogger())}, opts...)
	srv, err := New(creds, opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func newClient(t *testing.T, ts *httptest.Server, creds s3upload.Credentials, bucket string, opts ...s3upload.Option) *s3upload.Client {
	t.Helper()
	opts = append([]s3upload.Option{
		s3upload.WithEndpoint(strings.TrimPrefix(ts.URL, "http://")),
		s3upload.WithPathStyle(),
		s3upload.WithHTTPClient(ts.Client()),
		s3upload.WithLogger(quietLogger()),
	}, opts...)
	c, err := s3upload.New(creds, bucket, opts...)
	require.NoError(t, err)
	return c
}

func wait(t *testing.T, tr *s3upload.Transfer) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := tr.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return err
}

func requireServerError(t *testing.T, err error, status int, code string) *s3upload.ServerError {
	t.Helper()
	require.ErrorIs(t, err, s3upload.ErrServer)
	var se *s3upload.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, status, se.StatusCode)
	assert.Equal(t, code, se.ErrorCode())
	assert.NotEmpty(t, se.RequestID)
	return se
}

func TestUpload_Stored(t *testing.T) {
	srv, ts := newTestServer(t, serverCreds)
	c := newClient(t, ts, serverCreds, "uploads")

	tr := c.UploadData(context.Background(), []byte("0123456789"), "reports/out.txt", "text/plain",
		s3upload.UploadOptions{NoCache: true, ReducedRedundancy: true}, nil)
	require.NoError(t, wait(t, tr))

	obj, ok := srv.Object("uploads", "reports/out.txt")
	require.True(t, ok)
	assert.Equal(t, []byte("0123456789"), obj.Body)
	assert.Equal(t, "text/plain", obj.ContentType)
	assert.Empty(t, obj.ContentEncoding)
	assert.Equal(t, s3upload.CacheControlNoCache, obj.CacheControl)
	assert.Equal(t, s3upload.StorageClassReducedRedundancy, obj.StorageClass)
	assert.Equal(t, []string{"reports/out.txt"}, srv.Keys("uploads"))
}

func TestUpload_Gzip(t *testing.T) {
	srv, ts := newTestServer(t, serverCreds)
	c := newClient(t, ts, serverCreds, "uploads")
	payload := bytes.Repeat([]byte("compress me "), 200)

	tr := c.UploadData(context.Background(), payload, "logs/app.log", "", s3upload.UploadOptions{DetectGzip: true}, nil)
	require.NoError(t, wait(t, tr))

	obj, ok := srv.Object("uploads", "logs/app.log")
	require.True(t, ok)
	assert.Equal(t, "gzip", obj.ContentEncoding)
	assert.Equal(t, "text/plain", obj.ContentType)
	assert.Less(t, len(obj.Body), len(payload))

	plain, err := gzip.Decompress(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, plain)
}

func TestUpload_AlreadyGzipStoredOpaque(t *testing.T) {
	srv, ts := newTestServer(t, serverCreds)
	c := newClient(t, ts, serverCreds, "uploads")
	archive, err := gzip.New().Compress([]byte("tarball"))
	require.NoError(t, err)

	tr := c.UploadData(context.Background(), archive, "dist/app.tar.gz", "", s3upload.UploadOptions{DetectGzip: true}, nil)
	require.NoError(t, wait(t, tr))

	obj, ok := srv.Object("uploads", "dist/app.tar.gz")
	require.True(t, ok)
	assert.Empty(t, obj.ContentEncoding)
	assert.Equal(t, archive, obj.Body)
}

func TestUpload_EscapedKey(t *testing.T) {
	srv, ts := newTestServer(t, serverCreds)
	c := newClient(t, ts, serverCreds, "uploads")
	key := "reports/Q1 summary (final)+ü.txt"

	tr := c.UploadData(context.Background(), []byte("x"), key, "", s3upload.UploadOptions{}, nil)
	require.NoError(t, wait(t, tr))

	_, ok := srv.Object("uploads", key)
	assert.True(t, ok)
}

func TestUpload_SignedExtraHeaders(t *testing.T) {
	_, ts := newTestServer(t, serverCreds)
	c := newClient(t, ts, serverCreds, "uploads")

	tr := c.UploadData(context.Background(), []byte("x"), "k.bin", "", s3upload.UploadOptions{
		Headers: []s3upload.Header{{Name: "x-amz-meta-owner", Value: "ops"}, {Name: "X-Amz-Meta-Owner", Value: "dev"}},
	}, nil)
	assert.NoError(t, wait(t, tr))
}

func TestUpload_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		creds  s3upload.Credentials
		bucket string
		opts   []s3upload.Option
		status int
		code   string
	}{
		{
			name:   "wrong secret",
			creds:  s3upload.Credentials{AccessKeyID: serverCreds.AccessKeyID, SecretAccessKey: "not-the-secret"},
			bucket: "uploads",
			status: http.StatusForbidden,
			code:   CodeSignatureDoesNotMatch,
		},
		{
			name:   "unknown access key",
			creds:  s3upload.Credentials{AccessKeyID: "AKIDOTHER", SecretAccessKey: serverCreds.SecretAccessKey},
			bucket: "uploads",
			status: http.StatusForbidden,
			code:   CodeInvalidAccessKeyID,
		},
		{
			name:   "clock skew",
			creds:  serverCreds,
			bucket: "uploads",
			opts:   []s3upload.Option{s3upload.WithClock(func() time.Time { return time.Now().Add(-time.Hour) })},
			status: http.StatusForbidden,
			code:   CodeRequestTimeTooSkewed,
		},
		{
			name:   "missing bucket",
			creds:  serverCreds,
			bucket: "nope",
			status: http.StatusNotFound,
			code:   CodeNoSuchBucket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, ts := newTestServer(t, serverCreds)
			c := newClient(t, ts, tt.creds, tt.bucket, tt.opts...)

			tr := c.UploadData(context.Background(), []byte("x"), "k.txt", "", s3upload.UploadOptions{}, nil)
			requireServerError(t, wait(t, tr), tt.status, tt.code)
			assert.Empty(t, srv.Keys("uploads"))
		})
	}
}

func TestUpload_SessionToken(t *testing.T) {
	tokenCreds := serverCreds
	tokenCreds.SessionToken = "session-abc"
	_, ts := newTestServer(t, tokenCreds)

	ok := newClient(t, ts, tokenCreds, "uploads")
	require.NoError(t, wait(t, ok.UploadData(context.Background(), []byte("x"), "a.txt", "", s3upload.UploadOptions{}, nil)))

	missing := newClient(t, ts, serverCreds, "uploads")
	err := wait(t, missing.UploadData(context.Background(), []byte("x"), "b.txt", "", s3upload.UploadOptions{}, nil))
	requireServerError(t, err, http.StatusBadRequest, CodeMissingSecurityHeader)
}

// signedPut builds a PUT signed with serverCreds without going through the client
func signedPut(t *testing.T, ts *httptest.Server, key string, body []byte, header http.Header) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/uploads/"+key, bytes.NewReader(body))
	require.NoError(t, err)
	for name, values := range header {
		req.Header[name] = values
	}
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	sts := s3upload.StringToSign{
		Method:      http.MethodPut,
		ContentMD5:  req.Header.Get("Content-MD5"),
		ContentType: req.Header.Get("Content-Type"),
		Date:        req.Header.Get("Date"),
		Header:      req.Header,
		Resource:    s3upload.CanonicalResource("uploads", key),
	}
	auth, err := s3upload.Sign(sts.String(), serverCreds)
	require.NoError(t, err)
	req.Header.Set("Authorization", auth)
	return req
}

func decodeError(t *testing.T, resp *http.Response) *s3upload.ServerError {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/xml")

	var doc struct {
		Code      string `xml:"Code"`
		RequestID string `xml:"RequestId"`
	}
	require.NoError(t, xml.Unmarshal(body, &doc))
	assert.Equal(t, resp.Header.Get(headerRequestID), doc.RequestID)
	return &s3upload.ServerError{StatusCode: resp.StatusCode, Code: doc.Code}
}

func TestPut_BadDigest(t *testing.T) {
	_, ts := newTestServer(t, serverCreds)
	other := md5.Sum([]byte("something else"))
	header := http.Header{"Content-Md5": {base64.StdEncoding.EncodeToString(other[:])}}

	resp, err := ts.Client().Do(signedPut(t, ts, "d.txt", []byte("payload"), header))
	require.NoError(t, err)
	se := decodeError(t, resp)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, CodeBadDigest, se.Code)
}

func TestPut_InvalidStorageClass(t *testing.T) {
	_, ts := newTestServer(t, serverCreds)
	header := http.Header{"X-Amz-Storage-Class": {"BOGUS"}}

	resp, err := ts.Client().Do(signedPut(t, ts, "s.txt", []byte("payload"), header))
	require.NoError(t, err)
	se := decodeError(t, resp)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, CodeInvalidStorageClass, se.Code)
}

func TestPut_MissingAuthorization(t *testing.T) {
	_, ts := newTestServer(t, serverCreds)
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/uploads/a.txt", strings.NewReader("x"))
	require.NoError(t, err)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	se := decodeError(t, resp)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Equal(t, CodeAccessDenied, se.Code)
}

func TestPut_TooLarge(t *testing.T) {
	_, ts := newTestServer(t, serverCreds, WithMaxObjectSize(4))

	resp, err := ts.Client().Do(signedPut(t, ts, "big.bin", []byte("more than four"), nil))
	require.NoError(t, err)
	se := decodeError(t, resp)
	assert.Equal(t, CodeEntityTooLarge, se.Code)
}

func TestGet(t *testing.T) {
	_, ts := newTestServer(t, serverCreds)
	c := newClient(t, ts, serverCreds, "uploads")
	require.NoError(t, wait(t, c.UploadData(context.Background(), []byte("hello"), "docs/readme.md", "", s3upload.UploadOptions{PermanentCache: true}, nil)))

	resp, err := ts.Client().Get(ts.URL + "/uploads/docs/readme.md")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "text/markdown", resp.Header.Get("Content-Type"))
	assert.Equal(t, s3upload.CacheControlPermanent, resp.Header.Get("Cache-Control"))
	assert.Equal(t, "STANDARD", resp.Header.Get("x-amz-storage-class"))

	missing, err := ts.Client().Get(ts.URL + "/uploads/docs/none.md")
	require.NoError(t, err)
	se := decodeError(t, missing)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, CodeNoSuchKey, se.Code)
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(s3upload.Credentials{})
	assert.ErrorIs(t, err, s3upload.ErrMissingCredentials)
}
