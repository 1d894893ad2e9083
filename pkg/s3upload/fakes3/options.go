package fakes3

import (
	"log/slog"
	"time"
)

// Option configures a Server
type Option func(*Server)

// WithBuckets pre-creates buckets
func WithBuckets(names ...string) Option {
	return func(s *Server) {
		s.initialBuckets = append(s.initialBuckets, names...)
	}
}

// WithClock sets the time source used for Date skew checks
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxSkew sets how far a request Date may drift from the server clock
func WithMaxSkew(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.maxSkew = d
		}
	}
}

// WithMaxObjectSize caps accepted request bodies
func WithMaxObjectSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxObjectSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}
