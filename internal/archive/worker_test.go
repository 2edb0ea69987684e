package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dangsayz/12img/internal/models"
	"github.com/dangsayz/12img/internal/repository"
	repomock "github.com/dangsayz/12img/internal/repository/mock"
	storagemock "github.com/dangsayz/12img/internal/storage/mock"
)

type workerFixture struct {
	jobs         *repomock.ArchiveJobRepository
	images       *repomock.ImageRepository
	imageStore   *storagemock.Store
	archiveStore *storagemock.Store
	worker       *Worker
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()

	f := &workerFixture{
		jobs:         repomock.NewArchiveJobRepository(),
		images:       repomock.NewImageRepository(),
		imageStore:   storagemock.NewStore(),
		archiveStore: storagemock.NewStore(),
	}
	f.worker = NewWorker(f.jobs, f.images, f.imageStore, f.archiveStore, Config{
		LeaseTTL:         35 * time.Minute,
		BuildTimeout:     30 * time.Minute,
		MaxAttempts:      3,
		FetchConcurrency: 2,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

// seedGallery inserts n images with distinct content into the fixture.
func (f *workerFixture) seedGallery(t *testing.T, galleryID string, filenames []string) {
	t.Helper()
	ctx := context.Background()

	for i, name := range filenames {
		img := &models.Image{
			GalleryID:        galleryID,
			StoragePath:      "images/u1/" + galleryID + "/" + string(rune('a'+i)),
			OriginalFilename: name,
			FileSize:         int64(100 + i),
			MimeType:         "image/jpeg",
		}
		if err := f.images.InsertAtPosition(ctx, img); err != nil {
			t.Fatalf("seed image: %v", err)
		}
		f.imageStore.SetObject(img.StoragePath, bytes.Repeat([]byte{byte('A' + i)}, 100+i), "image/jpeg")
	}
}

func TestRunOnceEmptyQueue(t *testing.T) {
	f := newWorkerFixture(t)

	result, err := f.worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if result.Processed {
		t.Error("nothing to process on an empty queue")
	}
}

func TestRunOnceBuildsArchive(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	f.seedGallery(t, "g1", []string{"sunset.jpg", "beach.jpg", "sunset.jpg"})

	job := &models.ArchiveJob{GalleryID: "g1"}
	if err := f.jobs.Enqueue(ctx, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	result, err := f.worker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if !result.Processed {
		t.Fatal("expected job to be processed")
	}

	done, err := f.jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if done.Status != models.ArchiveJobCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.StoragePath != "archives/"+job.ID+".zip" {
		t.Errorf("unexpected storage path %s", done.StoragePath)
	}
	if done.FileSizeBytes <= 0 {
		t.Errorf("expected positive archive size, got %d", done.FileSizeBytes)
	}

	// Read the archive back and verify entries.
	rc, err := f.archiveStore.Get(ctx, done.StoragePath)
	if err != nil {
		t.Fatalf("get archive: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()

	if int64(len(data)) != done.FileSizeBytes {
		t.Errorf("recorded size %d != stored size %d", done.FileSizeBytes, len(data))
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("invalid zip: %v", err)
	}
	if len(zr.File) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(zr.File))
	}

	wantNames := []string{"sunset.jpg", "beach.jpg", "sunset (2).jpg"}
	for i, zf := range zr.File {
		if zf.Name != wantNames[i] {
			t.Errorf("entry %d: expected %q, got %q", i, wantNames[i], zf.Name)
		}
		if zf.Method != zip.Store {
			t.Errorf("entry %s: images must not be recompressed", zf.Name)
		}

		er, err := zf.Open()
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		content, _ := io.ReadAll(er)
		er.Close()
		if len(content) != 100+i {
			t.Errorf("entry %s: expected %d bytes, got %d", zf.Name, 100+i, len(content))
		}
	}
}

func TestRunOnceReleasesStaleFirst(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	deadOwner := "dead-worker"
	f.jobs.SetJob(&models.ArchiveJob{
		GalleryID:      "g-stale",
		Status:         models.ArchiveJobProcessing,
		LeaseOwner:     &deadOwner,
		LeaseExpiresAt: &past,
	})
	f.seedGallery(t, "g-stale", []string{"a.jpg"})

	result, err := f.worker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if result.Released != 1 {
		t.Errorf("expected 1 released lease, got %d", result.Released)
	}
	// The reclaimed job went back to pending, so this same pass builds it.
	if !result.Processed {
		t.Error("expected reclaimed job to be processed")
	}
}

func TestRunOnceFetchFailureLeavesJobProcessing(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	f.seedGallery(t, "g1", []string{"a.jpg"})
	f.imageStore.GetError = errors.New("storage unavailable")

	job := &models.ArchiveJob{GalleryID: "g1"}
	if err := f.jobs.Enqueue(ctx, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := f.worker.RunOnce(ctx); err == nil {
		t.Fatal("expected build error")
	}

	// The job stays processing under our lease; expiry will reclaim it with
	// attempts+1 rather than failing it outright.
	got, err := f.jobs.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.ArchiveJobProcessing {
		t.Errorf("expected processing after build failure, got %s", got.Status)
	}
	if got.Attempts != 0 {
		t.Errorf("build failure must not bump attempts directly, got %d", got.Attempts)
	}
}

func TestRunOnceCompleteRace(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	f.seedGallery(t, "g1", []string{"a.jpg"})
	job := &models.ArchiveJob{GalleryID: "g1"}
	if err := f.jobs.Enqueue(ctx, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// Simulate the stale sweep stealing the lease mid-build.
	f.jobs.OnComplete = func(ctx context.Context, jobID, ownerID, storagePath string, sizeBytes int64) error {
		return repository.ErrConcurrentModification
	}

	_, err := f.worker.RunOnce(ctx)
	if !errors.Is(err, repository.ErrConcurrentModification) {
		t.Errorf("expected lease-lost error to surface, got %v", err)
	}
}

func TestCleanupExpiredArchives(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	old := time.Now().Add(-3 * 365 * 24 * time.Hour)
	f.jobs.SetJob(&models.ArchiveJob{
		GalleryID:   "g-old",
		Status:      models.ArchiveJobCompleted,
		StoragePath: "archives/old.zip",
		CompletedAt: &old,
	})
	recent := time.Now().Add(-time.Hour)
	f.jobs.SetJob(&models.ArchiveJob{
		GalleryID:   "g-new",
		Status:      models.ArchiveJobCompleted,
		StoragePath: "archives/new.zip",
		CompletedAt: &recent,
	})
	f.archiveStore.SetObject("archives/old.zip", []byte("old"), "application/zip")
	f.archiveStore.SetObject("archives/new.zip", []byte("new"), "application/zip")

	deleted, err := f.worker.CleanupExpiredArchives(ctx, 2*365*24*time.Hour)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted archive, got %d", deleted)
	}

	if _, err := f.archiveStore.Head(ctx, "archives/old.zip"); err == nil {
		t.Error("expired object should be gone")
	}
	if _, err := f.archiveStore.Head(ctx, "archives/new.zip"); err != nil {
		t.Error("recent object must survive the sweep")
	}
}

func TestCleanupKeepsRowWhenObjectDeleteFails(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	old := time.Now().Add(-3 * 365 * 24 * time.Hour)
	job := &models.ArchiveJob{
		GalleryID:   "g-old",
		Status:      models.ArchiveJobCompleted,
		StoragePath: "archives/old.zip",
		CompletedAt: &old,
	}
	f.jobs.SetJob(job)
	f.archiveStore.DeleteError = errors.New("storage unavailable")

	deleted, err := f.worker.CleanupExpiredArchives(ctx, 2*365*24*time.Hour)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected no deletions, got %d", deleted)
	}

	// Row survives so the next sweep retries.
	if _, err := f.jobs.GetByID(ctx, job.ID); err != nil {
		t.Errorf("job row should survive failed object delete: %v", err)
	}
}

func TestUniqueEntryName(t *testing.T) {
	seen := make(map[string]int)

	tests := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"photo.jpg", "photo (2).jpg"},
		{"photo.jpg", "photo (3).jpg"},
		{"other.png", "other.png"},
		{"noext", "noext"},
		{"noext", "noext (2)"},
		{"dir/nested.jpg", "nested.jpg"},
		{"", "image"},
	}

	for _, tt := range tests {
		if got := uniqueEntryName(seen, tt.in); got != tt.want {
			t.Errorf("uniqueEntryName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
