package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps objects in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]Object
}

// NewMemoryStore builds an empty MemoryStore serving URLs under baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, objects: make(map[string]Object)}
}

func (s *MemoryStore) Put(ctx context.Context, prefix string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrEmptyObject
	}
	p := newObjectPath(prefix, contentType)
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.objects[p] = Object{Path: p, ContentType: contentType, Data: buf}
	s.mu.Unlock()
	return p, nil
}

func (s *MemoryStore) URL(ctx context.Context, objectPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	_, ok := s.objects[objectPath]
	s.mu.RUnlock()
	if !ok {
		return "", ErrObjectNotFound
	}
	return publicURL(s.baseURL, objectPath), nil
}

func (s *MemoryStore) Open(ctx context.Context, objectPath string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[objectPath]
	if !ok {
		return Object{}, ErrObjectNotFound
	}
	return obj, nil
}

var _ ObjectStore = (*MemoryStore)(nil)
