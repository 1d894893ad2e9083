package s3upload

import "io"

// progressReader wraps an io.Reader to report bytes read
type progressReader struct {
	reader   io.Reader
	sent     int64
	total    int64
	callback ProgressFunc
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc) io.Reader {
	if fn == nil {
		return r
	}
	return &progressReader{reader: r, total: total, callback: fn}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.sent += int64(n)
		pr.callback(pr.sent, pr.total)
	}
	return n, err
}
