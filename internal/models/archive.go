package models

import "time"

// ArchiveJobStatus is the lifecycle state of a ZIP build job.
type ArchiveJobStatus string

// Archive job states: pending -> processing -> {completed | failed}.
// A processing job whose lease has expired is reclaimed back to pending
// by the stale-lease sweep; a job at the attempts ceiling goes to failed.
const (
	ArchiveJobPending    ArchiveJobStatus = "pending"
	ArchiveJobProcessing ArchiveJobStatus = "processing"
	ArchiveJobCompleted  ArchiveJobStatus = "completed"
	ArchiveJobFailed     ArchiveJobStatus = "failed"
)

// ArchiveJob is a durable row representing a "build a ZIP of this gallery" request.
// The row is the only shared mutable resource between workers; every mutation is a
// conditional update keyed on expected prior state.
type ArchiveJob struct {
	ID             string
	GalleryID      string
	Status         ArchiveJobStatus
	LeaseOwner     *string
	LeaseExpiresAt *time.Time
	Attempts       int
	StoragePath    string // set once completed
	FileSizeBytes  int64  // set once completed
	CreatedAt      time.Time
	CompletedAt    *time.Time
}
