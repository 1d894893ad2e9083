package mimetype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver_ContentType(t *testing.T) {
	r := New(WithType("bin", "application/x-custom"))

	tests := []struct {
		name string
		want string
	}{
		{"reports/out.txt", "text/plain"},
		{"REPORT.TXT", "text/plain"},
		{"image.png", "image/png"},
		{"page.html", "text/html; charset=utf-8"},
		{"archive.tar", "application/x-tar"},
		{"blob.bin", "application/x-custom"},
		{"noextension", Default},
		{"weird.unknownext", Default},
		{"dir.d/file", Default},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.ContentType(tt.name))
		})
	}
}

func TestResolver_EmptyFallback(t *testing.T) {
	r := New(WithFallback(""))
	assert.Equal(t, "", r.ContentType("file.unknownext"))
	assert.Equal(t, "text/plain", r.ContentType("file.txt"))
}
