// Package storage provides abstraction for object storage operations.
// Clients never stream image bytes through the application: uploads and
// downloads go directly to the backend via presigned URLs, and the server
// touches object bytes only when building archives.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound indicates the requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// ObjectStore defines the interface for object storage operations.
// Implementations can support AWS S3, MinIO, or other S3-compatible providers.
type ObjectStore interface {
	// Put writes data from the reader to storage under the given key,
	// streaming so archives of arbitrary size never buffer in memory.
	// size is a hint; pass -1 when unknown.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Get returns a reader for the stored object.
	// The caller is responsible for closing the returned ReadCloser.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Head returns object metadata without fetching the body.
	// Returns ErrObjectNotFound if the object doesn't exist.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// PresignPut returns a URL that authorizes a direct upload of the given
	// content type to key, valid for ttl.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)

	// PresignGet returns a URL that authorizes a direct download of key,
	// valid for ttl.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// StoreError represents errors from storage operations with context about
// the operation and key involved.
type StoreError struct {
	Op  string // Operation that failed (e.g., "Put", "Head", "PresignPut")
	Key string // Object key involved
	Err error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return e.Op + " " + e.Key + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError wrapping err.
func NewStoreError(op, key string, err error) *StoreError {
	return &StoreError{Op: op, Key: key, Err: err}
}
