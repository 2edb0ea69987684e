// Package repository defines interfaces for data access operations.
// The production backend is the managed PostgreSQL database; the interfaces
// exist so the core logic depends only on the atomicity contract of each
// operation, not on the SQL that implements it.
package repository

import "errors"

// Common errors returned by repository operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateKey is returned when an insert violates a uniqueness constraint.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrQuotaExceeded is returned when an operation would exceed a plan limit.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrConcurrentModification is returned when a conditional update finds the
	// row in an unexpected state.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNilDatabase is returned when a nil database connection is provided.
	ErrNilDatabase = errors.New("nil database connection")
)

// Repositories holds all repository implementations.
// This struct provides a single point of access to all data access layers.
type Repositories struct {
	Galleries   GalleryRepository
	Images      ImageRepository
	ArchiveJobs ArchiveJobRepository
	Sessions    SessionRepository
	Users       UserRepository

	// Cleanup releases the underlying connection pool. May be nil when the
	// caller manages the pool lifecycle.
	Cleanup func()
}
