// Package s3upload uploads buffers and files to an S3-compatible bucket with
// signature-authenticated PUT requests, without a vendor SDK.
//
// Requests are signed with the "AWS <access key id>:<signature>" scheme: the
// signature is base64(HMAC-SHA1(secret, string to sign)) over the method, Content-MD5,
// Content-Type, Date, the sorted x-amz- headers and the "/bucket/key" resource.
//
// # Basic Usage
//
//	client, err := s3upload.New(s3upload.Credentials{
//	    AccessKeyID:     "AKID",
//	    SecretAccessKey: "SECRET",
//	}, "my-bucket")
//
//	t := client.UploadData(ctx, data, "reports/out.txt", "text/plain",
//	    s3upload.UploadOptions{UseSecureTransport: true},
//	    func(err error) {
//	        if err != nil {
//	            log.Printf("upload failed: %v", err)
//	        }
//	    })
//	err = t.Wait(ctx)
//
// One-shot uploads that need no client:
//
//	s3upload.UploadFile(ctx, creds, "my-bucket", "./report.csv", "reports/report.csv",
//	    s3upload.UploadOptions{DetectGzip: true}, nil)
//
// # Transfers
//
// Every upload returns a *Transfer that resolves exactly once. The optional
// completion callback runs on the transfer's goroutine (see WithCallbackExecutor),
// then Done is closed. Failures are *UploadError values whose kind is one of
// ErrConfiguration, ErrIO, ErrSigning, ErrTransport, ErrServer or ErrCancelled;
// non-2xx responses carry a *ServerError.
//
// A Client runs one transfer at a time: a new upload cancels the one in flight.
package s3upload
