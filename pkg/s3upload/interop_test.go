package s3upload

import (
	"context"
	"testing"

	"github.com/minio/minio-go/pkg/s3signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minio-go's V2 signer is an independent implementation of the same scheme; both must
// produce the same Authorization header for every request the builder emits.
func TestBuild_AuthorizationMatchesMinioSignV2(t *testing.T) {
	tests := []struct {
		name      string
		pathStyle bool
		token     string
		ur        UploadRequest
	}{
		{
			name: "virtual host",
			ur: UploadRequest{
				Payload: Bytes([]byte("0123456789")), Bucket: "reports-bucket", Key: "reports/out.txt",
				ContentType: "text/plain",
			},
		},
		{
			name:      "path style with escaped key and amz headers",
			pathStyle: true,
			token:     "session-token",
			ur: UploadRequest{
				Payload: Bytes([]byte("payload")), Bucket: "b", Key: "dir/Q1 summary (final)+ü.csv",
				Options: UploadOptions{
					ReducedRedundancy: true,
					NoCache:           true,
					Headers:           []Header{{Name: "x-amz-meta-owner", Value: "ops"}},
				},
			},
		},
		{
			name: "gzip",
			ur: UploadRequest{
				Payload: Bytes([]byte("compress compress compress")), Bucket: "b", Key: "logs/app.log",
				Options: UploadOptions{DetectGzip: true, PermanentCache: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t)
			b.pathStyle = tt.pathStyle
			b.sessionToken = tt.token

			req, err := b.build(context.Background(), tt.ur)
			require.NoError(t, err)

			clone := req.Clone(context.Background())
			clone.Header.Del("Authorization")
			signed := s3signer.SignV2(*clone, testCreds.AccessKeyID, testCreds.SecretAccessKey, !tt.pathStyle)

			assert.Equal(t, signed.Header.Get("Authorization"), req.Header.Get("Authorization"))
		})
	}
}
