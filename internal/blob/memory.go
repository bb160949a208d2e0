package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

type memoryObject struct {
	data        []byte
	contentType string
}

type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (s *MemoryStore) Put(_ context.Context, _, contentType string, _ int64, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.objects[id] = memoryObject{data: data, contentType: contentType}
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) Open(_ context.Context, id string) (*Object, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	obj, ok := s.objects[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	return &Object{
		ReadCloser:  io.NopCloser(bytes.NewReader(obj.data)),
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
	}, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		return ErrNotFound
	}
	delete(s.objects, id)
	return nil
}

// Len reports how many blobs are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
