package fakes3

import (
	"encoding/xml"
	"net/http"

	"github.com/go-chi/render"
)

// S3 error codes returned by the fake endpoint
const (
	CodeAccessDenied          = "AccessDenied"
	CodeSignatureDoesNotMatch = "SignatureDoesNotMatch"
	CodeRequestTimeTooSkewed  = "RequestTimeTooSkewed"
	CodeBadDigest             = "BadDigest"
	CodeInvalidDigest         = "InvalidDigest"
	CodeInvalidStorageClass   = "InvalidStorageClass"
	CodeNoSuchBucket          = "NoSuchBucket"
	CodeNoSuchKey             = "NoSuchKey"
	CodeInvalidAccessKeyID    = "InvalidAccessKeyId"
	CodeMissingSecurityHeader = "MissingSecurityHeader"
	CodeInvalidToken          = "InvalidToken"
	CodeEntityTooLarge        = "EntityTooLarge"
	CodeInternalError         = "InternalError"
)

// errResponse is the S3 <Error> document
type errResponse struct {
	XMLName        xml.Name `xml:"Error"`
	HTTPStatusCode int      `xml:"-"`
	Code           string   `xml:"Code"`
	Message        string   `xml:"Message"`
	Resource       string   `xml:"Resource,omitempty"`
	RequestID      string   `xml:"RequestId"`
	HostID         string   `xml:"HostId,omitempty"`
}

func (e *errResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Render(w, r, &errResponse{
		HTTPStatusCode: status,
		Code:           code,
		Message:        message,
		Resource:       r.URL.Path,
		RequestID:      w.Header().Get(headerRequestID),
		HostID:         hostID,
	})
}
