package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dangsayz/12img/internal/models"
	"github.com/dangsayz/12img/internal/repository"
)

// ArchiveJobRepository implements repository.ArchiveJobRepository for PostgreSQL.
//
// Lease acquisition uses FOR UPDATE SKIP LOCKED so racing workers never block
// each other and at most one can claim a given pending job. All status
// transitions are conditional updates keyed on the expected prior state.
type ArchiveJobRepository struct {
	pool *Pool
}

// NewArchiveJobRepository creates a new PostgreSQL archive job repository.
func NewArchiveJobRepository(pool *Pool) *ArchiveJobRepository {
	return &ArchiveJobRepository{pool: pool}
}

const jobColumns = `
	id, gallery_id, status, lease_owner, lease_expires_at,
	attempts, storage_path, file_size_bytes, created_at, completed_at
`

// scanJob scans one archive job row.
func scanJob(row pgx.Row) (*models.ArchiveJob, error) {
	job := &models.ArchiveJob{}
	var leaseOwner sql.NullString
	var leaseExpiresAt, completedAt sql.NullTime
	var status string

	err := row.Scan(
		&job.ID,
		&job.GalleryID,
		&status,
		&leaseOwner,
		&leaseExpiresAt,
		&job.Attempts,
		&job.StoragePath,
		&job.FileSizeBytes,
		&job.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = models.ArchiveJobStatus(status)
	job.LeaseOwner = scanNullableString(leaseOwner)
	job.LeaseExpiresAt = scanNullableTime(leaseExpiresAt)
	job.CompletedAt = scanNullableTime(completedAt)

	return job, nil
}

// Enqueue creates a new pending job for a gallery.
func (r *ArchiveJobRepository) Enqueue(ctx context.Context, job *models.ArchiveJob) error {
	query := `
		INSERT INTO archive_jobs (gallery_id, status)
		VALUES ($1, 'pending')
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query, job.GalleryID).Scan(&job.ID, &job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue archive job: %w", err)
	}

	job.Status = models.ArchiveJobPending
	return nil
}

// GetByID retrieves a job by ID.
func (r *ArchiveJobRepository) GetByID(ctx context.Context, id string) (*models.ArchiveJob, error) {
	query := `SELECT ` + jobColumns + ` FROM archive_jobs WHERE id = $1`

	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query archive job: %w", err)
	}

	return job, nil
}

// GetLatestByGallery returns the most recently created job for a gallery.
func (r *ArchiveJobRepository) GetLatestByGallery(ctx context.Context, galleryID string) (*models.ArchiveJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM archive_jobs
		WHERE gallery_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	job, err := scanJob(r.pool.QueryRow(ctx, query, galleryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest archive job: %w", err)
	}

	return job, nil
}

// LeaseNextPending atomically claims the oldest pending job for ownerID.
// The SKIP LOCKED subselect guarantees two concurrent callers cannot claim
// the same row: the second caller skips the locked row and sees the queue
// as empty (or claims the next pending job).
func (r *ArchiveJobRepository) LeaseNextPending(ctx context.Context, ownerID string, ttl time.Duration) (*models.ArchiveJob, error) {
	if ownerID == "" {
		return nil, repository.ErrInvalidInput
	}

	query := `
		UPDATE archive_jobs
		SET status = 'processing',
		    lease_owner = $1,
		    lease_expires_at = NOW() + $2
		WHERE id = (
			SELECT id FROM archive_jobs
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	job, err := withRetry(ctx, 3, func() (*models.ArchiveJob, error) {
		return scanJob(r.pool.QueryRow(ctx, query, ownerID, ttl))
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // No pending job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lease archive job: %w", err)
	}

	return job, nil
}

// ReleaseStale resets processing jobs with expired leases back to pending,
// incrementing attempts; jobs at the attempts ceiling go to failed instead.
// One statement covers both transitions so the sweep cannot lose updates to
// an in-flight worker between the scan and the write.
func (r *ArchiveJobRepository) ReleaseStale(ctx context.Context, now time.Time, maxAttempts int) (int, error) {
	query := `
		UPDATE archive_jobs
		SET status = CASE WHEN attempts + 1 >= $2 THEN 'failed' ELSE 'pending' END,
		    attempts = attempts + 1,
		    lease_owner = NULL,
		    lease_expires_at = NULL
		WHERE status = 'processing' AND lease_expires_at < $1
	`

	tag, err := withRetry(ctx, 3, func() (int64, error) {
		tag, err := r.pool.Exec(ctx, query, now, maxAttempts)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to release stale jobs: %w", err)
	}

	return int(tag), nil
}

// Complete marks a processing job owned by ownerID as completed.
func (r *ArchiveJobRepository) Complete(ctx context.Context, jobID, ownerID, storagePath string, sizeBytes int64) error {
	query := `
		UPDATE archive_jobs
		SET status = 'completed',
		    storage_path = $3,
		    file_size_bytes = $4,
		    completed_at = NOW(),
		    lease_owner = NULL,
		    lease_expires_at = NULL
		WHERE id = $1 AND status = 'processing' AND lease_owner = $2
	`

	tag, err := r.pool.Exec(ctx, query, jobID, ownerID, storagePath, sizeBytes)
	if err != nil {
		return fmt.Errorf("failed to complete archive job: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Lease was lost: the stale sweep reclaimed the job mid-build.
		return repository.ErrConcurrentModification
	}

	return nil
}

// ListExpired returns completed jobs whose archives are older than the cutoff.
func (r *ArchiveJobRepository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]repository.ExpiredArchive, error) {
	query := `
		SELECT id, storage_path
		FROM archive_jobs
		WHERE status = 'completed' AND completed_at < $1
		ORDER BY completed_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired archives: %w", err)
	}
	defer rows.Close()

	var expired []repository.ExpiredArchive
	for rows.Next() {
		var e repository.ExpiredArchive
		if err := rows.Scan(&e.JobID, &e.StoragePath); err != nil {
			return nil, fmt.Errorf("failed to scan expired archive: %w", err)
		}
		expired = append(expired, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired archives: %w", err)
	}

	return expired, nil
}

// Delete removes a job row.
func (r *ArchiveJobRepository) Delete(ctx context.Context, jobID string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM archive_jobs WHERE id = $1", jobID)
	if err != nil {
		return fmt.Errorf("failed to delete archive job: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}
