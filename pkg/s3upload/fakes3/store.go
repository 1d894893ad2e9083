package fakes3

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	errNoSuchBucket = errors.New("bucket not found")
	errNoSuchKey    = errors.New("object not found")
)

// Object is a stored upload as the service received it
type Object struct {
	Key             string
	Body            []byte
	ContentType     string
	ContentEncoding string
	CacheControl    string
	StorageClass    string
	ETag            string
	LastModified    time.Time
}

// store is an in-memory bucket -> key -> object map
type store struct {
	mu      sync.RWMutex
	buckets map[string]map[string]Object
}

func newStore() *store {
	return &store{buckets: make(map[string]map[string]Object)}
}

func (s *store) createBucket(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.buckets[name]; !exists {
		s.buckets[name] = make(map[string]Object)
	}
}

func (s *store) hasBucket(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.buckets[name]
	return exists
}

func (s *store) put(bucket string, obj Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	objects, exists := s.buckets[bucket]
	if !exists {
		return errNoSuchBucket
	}
	objects[obj.Key] = obj
	return nil
}

func (s *store) get(bucket, key string) (Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, exists := s.buckets[bucket]
	if !exists {
		return Object{}, errNoSuchBucket
	}
	obj, exists := objects[key]
	if !exists {
		return Object{}, errNoSuchKey
	}
	return obj, nil
}

func (s *store) keys(bucket string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.buckets[bucket]))
	for k := range s.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
