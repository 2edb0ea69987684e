// Package mock provides mock implementations of repository interfaces for
// testing. These mocks allow tests to run without a real database and provide
// configurable behavior for testing error conditions and edge cases.
//
// IMPORTANT: Error injection fields (e.g., EnqueueError) and hooks
// (e.g., OnLeaseNextPending) should be set BEFORE any concurrent operations
// begin. They are not protected by the mutex.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dangsayz/12img/internal/models"
	"github.com/dangsayz/12img/internal/repository"
)

// ArchiveJobRepository is a mock implementation of
// repository.ArchiveJobRepository. It preserves the same atomicity semantics
// as the PostgreSQL implementation under a single mutex, so concurrency tests
// against the mock exercise the same contract.
type ArchiveJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*models.ArchiveJob

	// Error injection for testing error handling
	// NOTE: Set these BEFORE concurrent access begins
	EnqueueError            error
	GetByIDError            error
	GetLatestByGalleryError error
	LeaseNextPendingError   error
	ReleaseStaleError       error
	CompleteError           error
	ListExpiredError        error
	DeleteError             error

	// Custom behavior hooks
	// NOTE: Set these BEFORE concurrent access begins
	OnLeaseNextPending func(ctx context.Context, ownerID string, ttl time.Duration) (*models.ArchiveJob, error)
	OnComplete         func(ctx context.Context, jobID, ownerID, storagePath string, sizeBytes int64) error
}

// NewArchiveJobRepository creates a new mock ArchiveJobRepository.
func NewArchiveJobRepository() *ArchiveJobRepository {
	return &ArchiveJobRepository{
		jobs: make(map[string]*models.ArchiveJob),
	}
}

// Ensure ArchiveJobRepository implements repository.ArchiveJobRepository
var _ repository.ArchiveJobRepository = (*ArchiveJobRepository)(nil)

// Reset clears all jobs and injected errors for a fresh test state.
func (r *ArchiveJobRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs = make(map[string]*models.ArchiveJob)

	r.EnqueueError = nil
	r.GetByIDError = nil
	r.GetLatestByGalleryError = nil
	r.LeaseNextPendingError = nil
	r.ReleaseStaleError = nil
	r.CompleteError = nil
	r.ListExpiredError = nil
	r.DeleteError = nil

	r.OnLeaseNextPending = nil
	r.OnComplete = nil
}

func deepCopyJob(src *models.ArchiveJob) *models.ArchiveJob {
	if src == nil {
		return nil
	}
	dst := *src
	if src.LeaseOwner != nil {
		owner := *src.LeaseOwner
		dst.LeaseOwner = &owner
	}
	if src.LeaseExpiresAt != nil {
		exp := *src.LeaseExpiresAt
		dst.LeaseExpiresAt = &exp
	}
	if src.CompletedAt != nil {
		done := *src.CompletedAt
		dst.CompletedAt = &done
	}
	return &dst
}

// Enqueue creates a new pending job.
func (r *ArchiveJobRepository) Enqueue(ctx context.Context, job *models.ArchiveJob) error {
	if r.EnqueueError != nil {
		return r.EnqueueError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job.ID = uuid.New().String()
	job.Status = models.ArchiveJobPending
	job.CreatedAt = time.Now()
	r.jobs[job.ID] = deepCopyJob(job)
	return nil
}

// GetByID retrieves a job by ID.
func (r *ArchiveJobRepository) GetByID(ctx context.Context, id string) (*models.ArchiveJob, error) {
	if r.GetByIDError != nil {
		return nil, r.GetByIDError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return deepCopyJob(job), nil
}

// GetLatestByGallery returns the most recently created job for a gallery.
func (r *ArchiveJobRepository) GetLatestByGallery(ctx context.Context, galleryID string) (*models.ArchiveJob, error) {
	if r.GetLatestByGalleryError != nil {
		return nil, r.GetLatestByGalleryError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *models.ArchiveJob
	for _, job := range r.jobs {
		if job.GalleryID != galleryID {
			continue
		}
		if latest == nil || job.CreatedAt.After(latest.CreatedAt) {
			latest = job
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return deepCopyJob(latest), nil
}

// LeaseNextPending claims the oldest pending job under the mutex, matching
// the exclusivity guarantee of the SQL implementation.
func (r *ArchiveJobRepository) LeaseNextPending(ctx context.Context, ownerID string, ttl time.Duration) (*models.ArchiveJob, error) {
	if r.OnLeaseNextPending != nil {
		return r.OnLeaseNextPending(ctx, ownerID, ttl)
	}
	if r.LeaseNextPendingError != nil {
		return nil, r.LeaseNextPendingError
	}
	if ownerID == "" {
		return nil, repository.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var oldest *models.ArchiveJob
	for _, job := range r.jobs {
		if job.Status != models.ArchiveJobPending {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, nil
	}

	exp := time.Now().Add(ttl)
	oldest.Status = models.ArchiveJobProcessing
	oldest.LeaseOwner = &ownerID
	oldest.LeaseExpiresAt = &exp
	return deepCopyJob(oldest), nil
}

// ReleaseStale reclaims processing jobs with expired leases.
func (r *ArchiveJobRepository) ReleaseStale(ctx context.Context, now time.Time, maxAttempts int) (int, error) {
	if r.ReleaseStaleError != nil {
		return 0, r.ReleaseStaleError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	released := 0
	for _, job := range r.jobs {
		if job.Status != models.ArchiveJobProcessing {
			continue
		}
		if job.LeaseExpiresAt == nil || !job.LeaseExpiresAt.Before(now) {
			continue
		}
		job.Attempts++
		if job.Attempts >= maxAttempts {
			job.Status = models.ArchiveJobFailed
		} else {
			job.Status = models.ArchiveJobPending
		}
		job.LeaseOwner = nil
		job.LeaseExpiresAt = nil
		released++
	}
	return released, nil
}

// Complete marks a processing job owned by ownerID as completed.
func (r *ArchiveJobRepository) Complete(ctx context.Context, jobID, ownerID, storagePath string, sizeBytes int64) error {
	if r.OnComplete != nil {
		return r.OnComplete(ctx, jobID, ownerID, storagePath, sizeBytes)
	}
	if r.CompleteError != nil {
		return r.CompleteError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status != models.ArchiveJobProcessing || job.LeaseOwner == nil || *job.LeaseOwner != ownerID {
		return repository.ErrConcurrentModification
	}

	now := time.Now()
	job.Status = models.ArchiveJobCompleted
	job.StoragePath = storagePath
	job.FileSizeBytes = sizeBytes
	job.CompletedAt = &now
	job.LeaseOwner = nil
	job.LeaseExpiresAt = nil
	return nil
}

// ListExpired returns completed jobs older than the cutoff.
func (r *ArchiveJobRepository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]repository.ExpiredArchive, error) {
	if r.ListExpiredError != nil {
		return nil, r.ListExpiredError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates []*models.ArchiveJob
	for _, job := range r.jobs {
		if job.Status == models.ArchiveJobCompleted && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			candidates = append(candidates, job)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CompletedAt.Before(*candidates[j].CompletedAt)
	})

	var expired []repository.ExpiredArchive
	for _, job := range candidates {
		if len(expired) >= limit {
			break
		}
		expired = append(expired, repository.ExpiredArchive{JobID: job.ID, StoragePath: job.StoragePath})
	}
	return expired, nil
}

// Delete removes a job.
func (r *ArchiveJobRepository) Delete(ctx context.Context, jobID string) error {
	if r.DeleteError != nil {
		return r.DeleteError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[jobID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.jobs, jobID)
	return nil
}

// SetJob installs a job directly, for test setup.
func (r *ArchiveJobRepository) SetJob(job *models.ArchiveJob) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	r.jobs[job.ID] = deepCopyJob(job)
}
