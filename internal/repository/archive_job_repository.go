package repository

import (
	"context"
	"time"

	"github.com/dangsayz/12img/internal/models"
)

// ExpiredArchive identifies a completed archive eligible for retention purge.
type ExpiredArchive struct {
	JobID       string
	StoragePath string
}

// ArchiveJobRepository defines operations on the durable ZIP job queue.
//
// Lease acquisition and every status transition must be implemented as a
// single atomic conditional update keyed on expected prior state, never a
// read-then-write, so that at most one worker processes a given job and the
// stale-lease sweep cannot race an in-flight worker.
type ArchiveJobRepository interface {
	// Enqueue creates a new pending job for a gallery.
	// The job.ID and job.CreatedAt fields are populated on success.
	Enqueue(ctx context.Context, job *models.ArchiveJob) error

	// GetByID retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetByID(ctx context.Context, id string) (*models.ArchiveJob, error)

	// GetLatestByGallery returns the most recently created job for a gallery.
	// Returns ErrNotFound if the gallery has no jobs.
	GetLatestByGallery(ctx context.Context, galleryID string) (*models.ArchiveJob, error)

	// LeaseNextPending atomically claims the oldest pending job for ownerID,
	// moving it to processing with a lease expiring after ttl.
	// Returns (nil, nil) when no pending job is available.
	//
	// Under N concurrent callers racing for one pending job, exactly one
	// receives it; the rest observe no job available.
	LeaseNextPending(ctx context.Context, ownerID string, ttl time.Duration) (*models.ArchiveJob, error)

	// ReleaseStale resets processing jobs whose lease expired before now back
	// to pending, incrementing attempts by exactly one. A job whose attempts
	// would reach maxAttempts transitions permanently to failed instead.
	// Returns the number of jobs reclaimed (to pending or failed).
	ReleaseStale(ctx context.Context, now time.Time, maxAttempts int) (int, error)

	// Complete marks a processing job owned by ownerID as completed with the
	// final archive location and size. Returns ErrConcurrentModification if
	// the job is no longer processing under that owner (lease lost).
	Complete(ctx context.Context, jobID, ownerID, storagePath string, sizeBytes int64) error

	// ListExpired returns completed jobs whose archives are older than the
	// cutoff, for the retention sweep.
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]ExpiredArchive, error)

	// Delete removes a job row. Called by the retention sweep only after the
	// archive object has been deleted from storage.
	Delete(ctx context.Context, jobID string) error
}
