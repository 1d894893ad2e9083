package s3upload

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const amzHeaderPrefix = "x-amz-"

// StringToSign holds the fields of a request that the authorization signature covers.
//
// The canonical form is
//
//	METHOD\nCONTENT-MD5\nCONTENT-TYPE\nDATE\n[x-amz-name:value\n...]RESOURCE
//
// where the x-amz- headers are lower-cased, sorted by name, and multiple values are
// joined with commas.
type StringToSign struct {
	Method      string
	ContentMD5  string
	ContentType string
	Date        string
	Header      http.Header
	Resource    string
}

// String returns the canonical string. Identical inputs always produce identical output.
func (s StringToSign) String() string {
	var b strings.Builder
	b.WriteString(s.Method)
	b.WriteByte('\n')
	b.WriteString(s.ContentMD5)
	b.WriteByte('\n')
	b.WriteString(s.ContentType)
	b.WriteByte('\n')
	b.WriteString(s.Date)
	b.WriteByte('\n')
	b.WriteString(CanonicalAmzHeaders(s.Header))
	b.WriteString(s.Resource)
	return b.String()
}

// CanonicalAmzHeaders folds the x-amz- headers of h into their signed form, one
// "name:value\n" line per header name, sorted by name. Values of names that differ
// only in case are merged in the order net/http writes them: by original name.
func CanonicalAmzHeaders(h http.Header) string {
	keys := make([]string, 0, len(h))
	for name := range h {
		keys = append(keys, name)
	}
	sort.Strings(keys)

	merged := make(map[string][]string)
	for _, name := range keys {
		values := h[name]
		lower := strings.ToLower(strings.TrimSpace(name))
		if !strings.HasPrefix(lower, amzHeaderPrefix) {
			continue
		}
		for _, v := range values {
			merged[lower] = append(merged[lower], foldHeaderValue(v))
		}
	}
	if len(merged) == 0 {
		return ""
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strings.Join(merged[name], ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// foldHeaderValue unfolds continuation lines and trims surrounding whitespace
func foldHeaderValue(v string) string {
	v = strings.NewReplacer("\r\n", " ", "\n", " ").Replace(v)
	return strings.TrimSpace(v)
}

// CanonicalResource returns "/{bucket}/{escaped key}".
func CanonicalResource(bucket, key string) string {
	return "/" + bucket + "/" + EscapeKey(key)
}

// EscapeKey percent-encodes every byte of key except A-Z a-z 0-9 - _ . ~ and /.
func EscapeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '_' || c == '.' || c == '~' || c == '/' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}
