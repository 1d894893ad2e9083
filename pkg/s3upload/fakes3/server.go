// Package fakes3 is an in-memory, path-style S3 endpoint that verifies V2 request
// signatures. It accepts PUT and GET on /{bucket}/{key...} and is meant for tests and
// local development.
package fakes3

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-upload/pkg/s3upload"
)

const (
	headerRequestID = "x-amz-request-id"
	headerHostID    = "x-amz-id-2"
	hostID          = "fakes3"

	// DefaultMaxSkew is the largest accepted difference between request Date and server time.
	DefaultMaxSkew = 15 * time.Minute

	// DefaultMaxObjectSize caps a single PUT body.
	DefaultMaxObjectSize int64 = 64 << 20
)

// Server is an http.Handler serving the fake endpoint
type Server struct {
	creds  s3upload.Credentials
	signer *s3upload.Signer
	store  *store
	router chi.Router

	initialBuckets []string
	now            func() time.Time
	maxSkew        time.Duration
	maxObjectSize  int64
	logger         *slog.Logger
}

// New creates a Server that accepts requests signed with creds.
func New(creds s3upload.Credentials, opts ...Option) (*Server, error) {
	signer, err := s3upload.NewSigner(creds)
	if err != nil {
		return nil, fmt.Errorf("fakes3: %w", err)
	}

	s := &Server{
		creds:         creds,
		signer:        signer,
		store:         newStore(),
		now:           time.Now,
		maxSkew:       DefaultMaxSkew,
		maxObjectSize: DefaultMaxObjectSize,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "fakes3")

	for _, name := range s.initialBuckets {
		s.CreateBucket(name)
	}

	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(render.SetContentType(render.ContentTypeXML))
	r.Put("/{bucket}/*", s.handlePut)
	r.Get("/{bucket}/*", s.handleGet)
	s.router = r

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// CreateBucket adds an empty bucket. Existing buckets are left untouched.
func (s *Server) CreateBucket(name string) {
	s.store.createBucket(name)
}

// Object returns a stored object
func (s *Server) Object(bucket, key string) (Object, bool) {
	obj, err := s.store.get(bucket, key)
	return obj, err == nil
}

// Keys lists the keys stored in bucket, sorted
func (s *Server) Keys(bucket string) []string {
	return s.store.keys(bucket)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerRequestID, strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")))
		w.Header().Set(headerHostID, hostID)
		next.ServeHTTP(w, r)
	})
}

// objectPath splits the unescaped request path into bucket and key
func objectPath(r *http.Request) (string, string) {
	bucket := chi.URLParam(r, "bucket")
	key := strings.TrimPrefix(r.URL.Path, "/"+bucket+"/")
	return bucket, key
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	bucket, key := objectPath(r)
	log := s.logger.With("bucket", bucket, "key", key, "request_id", w.Header().Get(headerRequestID))

	if key == "" {
		writeError(w, r, http.StatusBadRequest, "InvalidRequest", "object key is required")
		return
	}
	if !s.store.hasBucket(bucket) {
		writeError(w, r, http.StatusNotFound, CodeNoSuchBucket, "The specified bucket does not exist")
		return
	}

	if status, code, msg := s.authenticate(r); code != "" {
		log.Warn("rejected upload", "code", code, "reason", msg)
		writeError(w, r, status, code, msg)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxObjectSize+1))
	if err != nil {
		log.Error("failed to read body", "err", err)
		writeError(w, r, http.StatusInternalServerError, CodeInternalError, err.Error())
		return
	}
	if int64(len(body)) > s.maxObjectSize {
		writeError(w, r, http.StatusBadRequest, CodeEntityTooLarge, "Your proposed upload exceeds the maximum allowed object size")
		return
	}

	sum := md5.Sum(body)
	if want := r.Header.Get("Content-MD5"); want != "" {
		got, err := base64.StdEncoding.DecodeString(want)
		if err != nil || len(got) != md5.Size {
			writeError(w, r, http.StatusBadRequest, CodeInvalidDigest, "The Content-MD5 you specified was invalid")
			return
		}
		if !bytes.Equal(got, sum[:]) {
			writeError(w, r, http.StatusBadRequest, CodeBadDigest, "The Content-MD5 you specified did not match what we received")
			return
		}
	}

	storageClass := r.Header.Get("x-amz-storage-class")
	if storageClass == "" {
		storageClass = string(types.StorageClassStandard)
	} else if !validStorageClass(storageClass) {
		writeError(w, r, http.StatusBadRequest, CodeInvalidStorageClass, "The storage class you specified is not valid")
		return
	}

	etag := hex.EncodeToString(sum[:])
	obj := Object{
		Key:             key,
		Body:            body,
		ContentType:     r.Header.Get("Content-Type"),
		ContentEncoding: r.Header.Get("Content-Encoding"),
		CacheControl:    r.Header.Get("Cache-Control"),
		StorageClass:    storageClass,
		ETag:            etag,
		LastModified:    s.now().UTC(),
	}
	if err := s.store.put(bucket, obj); err != nil {
		writeError(w, r, http.StatusNotFound, CodeNoSuchBucket, err.Error())
		return
	}

	log.Info("object stored", "size", len(body), "storage_class", storageClass)
	w.Header().Set("ETag", strconv.Quote(etag))
	w.WriteHeader(http.StatusOK)
}

// authenticate checks the Authorization header, request time and session token. It
// returns an empty code when the request is acceptable.
func (s *Server) authenticate(r *http.Request) (int, string, string) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return http.StatusForbidden, CodeAccessDenied, "Access Denied"
	}
	accessKeyID, _, ok := s3upload.ParseAuthorization(auth)
	if !ok {
		return http.StatusBadRequest, CodeAccessDenied, "Authorization header is invalid"
	}
	if accessKeyID != s.creds.AccessKeyID {
		return http.StatusForbidden, CodeInvalidAccessKeyID, "The AWS Access Key Id you provided does not exist in our records"
	}

	date := r.Header.Get("Date")
	signedDate := date
	if amzDate := r.Header.Get("x-amz-date"); amzDate != "" {
		date = amzDate
		signedDate = ""
	}
	requestTime, err := http.ParseTime(date)
	if err != nil {
		return http.StatusForbidden, CodeAccessDenied, "AWS authentication requires a valid Date or x-amz-date header"
	}
	if skew := s.now().Sub(requestTime); skew > s.maxSkew || skew < -s.maxSkew {
		return http.StatusForbidden, CodeRequestTimeTooSkewed, "The difference between the request time and the current time is too large"
	}

	token := r.Header.Get("x-amz-security-token")
	switch {
	case s.creds.SessionToken != "" && token == "":
		return http.StatusBadRequest, CodeMissingSecurityHeader, "Your request is missing a required header: x-amz-security-token"
	case token != s.creds.SessionToken:
		return http.StatusBadRequest, CodeInvalidToken, "The provided token is malformed or otherwise invalid"
	}

	bucket, key := objectPath(r)
	sts := s3upload.StringToSign{
		Method:      r.Method,
		ContentMD5:  r.Header.Get("Content-MD5"),
		ContentType: r.Header.Get("Content-Type"),
		Date:        signedDate,
		Header:      r.Header,
		Resource:    s3upload.CanonicalResource(bucket, key),
	}
	if err := s.signer.Verify(sts.String(), auth); err != nil {
		if errors.Is(err, s3upload.ErrInvalidSignature) {
			return http.StatusForbidden, CodeSignatureDoesNotMatch, "The request signature we calculated does not match the signature you provided"
		}
		return http.StatusForbidden, CodeAccessDenied, err.Error()
	}
	return 0, "", ""
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	bucket, key := objectPath(r)

	obj, err := s.store.get(bucket, key)
	switch {
	case errors.Is(err, errNoSuchBucket):
		writeError(w, r, http.StatusNotFound, CodeNoSuchBucket, "The specified bucket does not exist")
		return
	case err != nil:
		writeError(w, r, http.StatusNotFound, CodeNoSuchKey, "The specified key does not exist")
		return
	}

	h := w.Header()
	if obj.ContentType != "" {
		h.Set("Content-Type", obj.ContentType)
	}
	if obj.ContentEncoding != "" {
		h.Set("Content-Encoding", obj.ContentEncoding)
	}
	if obj.CacheControl != "" {
		h.Set("Cache-Control", obj.CacheControl)
	}
	h.Set("x-amz-storage-class", obj.StorageClass)
	h.Set("ETag", strconv.Quote(obj.ETag))
	h.Set("Last-Modified", obj.LastModified.Format(http.TimeFormat))
	h.Set("Content-Length", strconv.Itoa(len(obj.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(obj.Body); err != nil {
		s.logger.Warn("failed to write object", "bucket", bucket, "key", key, "err", err)
	}
}

func validStorageClass(class string) bool {
	for _, v := range types.StorageClass("").Values() {
		if string(v) == class {
			return true
		}
	}
	return false
}
