// Package mock provides an in-memory ObjectStore for testing.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dangsayz/12img/internal/storage"
)

type object struct {
	data        []byte
	contentType string
}

// Store is an in-memory implementation of storage.ObjectStore.
// Presigned URLs are synthetic and resolvable only by tests.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object

	// Error injection for testing error handling
	// NOTE: Set these BEFORE concurrent access begins
	PutError        error
	GetError        error
	DeleteError     error
	HeadError       error
	PresignPutError error
	PresignGetError error

	// Custom behavior hooks
	// NOTE: Set these BEFORE concurrent access begins
	OnPut  func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	OnHead func(ctx context.Context, key string) (*storage.ObjectInfo, error)
}

// NewStore creates a new in-memory object store.
func NewStore() *Store {
	return &Store{
		objects: make(map[string]object),
	}
}

// Ensure Store implements storage.ObjectStore
var _ storage.ObjectStore = (*Store)(nil)

// Reset clears all objects and injected errors.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects = make(map[string]object)

	s.PutError = nil
	s.GetError = nil
	s.DeleteError = nil
	s.HeadError = nil
	s.PresignPutError = nil
	s.PresignGetError = nil

	s.OnPut = nil
	s.OnHead = nil
}

// SetObject installs an object directly, for test setup.
func (s *Store) SetObject(key string, data []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: append([]byte(nil), data...), contentType: contentType}
}

// ObjectCount returns the number of stored objects.
func (s *Store) ObjectCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Put stores the reader's contents in memory.
func (s *Store) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if s.OnPut != nil {
		return s.OnPut(ctx, key, reader, size, contentType)
	}
	if s.PutError != nil {
		return s.PutError
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return storage.NewStoreError("Put", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: data, contentType: contentType}
	return nil
}

// Get returns a reader over the stored bytes.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, storage.NewStoreError("Get", key, storage.ErrObjectNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete removes an object; missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s.DeleteError != nil {
		return s.DeleteError
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Head returns metadata for a stored object.
func (s *Store) Head(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	if s.OnHead != nil {
		return s.OnHead(ctx, key)
	}
	if s.HeadError != nil {
		return nil, s.HeadError
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, storage.NewStoreError("Head", key, storage.ErrObjectNotFound)
	}
	return &storage.ObjectInfo{Size: int64(len(obj.data)), ContentType: obj.contentType}, nil
}

// PresignPut returns a synthetic upload URL embedding the key.
func (s *Store) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	if s.PresignPutError != nil {
		return "", s.PresignPutError
	}
	return fmt.Sprintf("https://mock-store.test/put/%s?expires=%d", key, time.Now().Add(ttl).Unix()), nil
}

// PresignGet returns a synthetic download URL embedding the key.
func (s *Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.PresignGetError != nil {
		return "", s.PresignGetError
	}
	return fmt.Sprintf("https://mock-store.test/get/%s?expires=%d", key, time.Now().Add(ttl).Unix()), nil
}
