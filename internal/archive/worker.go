// Package archive implements the gallery ZIP build worker. Jobs live in a
// durable queue; workers claim them under a time-bounded lease, stream every
// gallery image into a ZIP, and upload the result without ever buffering the
// whole archive in memory.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dangsayz/12img/internal/metrics"
	"github.com/dangsayz/12img/internal/models"
	"github.com/dangsayz/12img/internal/repository"
	"github.com/dangsayz/12img/internal/storage"
)

// Config holds archive worker settings.
type Config struct {
	// LeaseTTL is how long a claimed job stays exclusive. Must exceed
	// BuildTimeout so a live worker never loses its lease mid-build.
	LeaseTTL time.Duration

	// BuildTimeout bounds one job's wall clock.
	BuildTimeout time.Duration

	// MaxAttempts is the ceiling after which a job fails permanently.
	MaxAttempts int

	// FetchConcurrency bounds parallel image downloads per job.
	FetchConcurrency int
}

// Result summarizes one RunOnce pass.
type Result struct {
	// Processed reports whether a job was claimed and completed.
	Processed bool

	// Released is the number of stale leases reclaimed before claiming.
	Released int
}

// Worker builds gallery archives from the job queue.
type Worker struct {
	jobs         repository.ArchiveJobRepository
	images       repository.ImageRepository
	imageStore   storage.ObjectStore
	archiveStore storage.ObjectStore
	cfg          Config
	ownerID      string
	logger       *slog.Logger
}

// NewWorker creates an archive worker with a unique owner identity.
func NewWorker(
	jobs repository.ArchiveJobRepository,
	images repository.ImageRepository,
	imageStore storage.ObjectStore,
	archiveStore storage.ObjectStore,
	cfg Config,
	logger *slog.Logger,
) *Worker {
	if cfg.FetchConcurrency < 1 {
		cfg.FetchConcurrency = 5
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		jobs:         jobs,
		images:       images,
		imageStore:   imageStore,
		archiveStore: archiveStore,
		cfg:          cfg,
		ownerID:      generateOwnerID(),
		logger:       logger,
	}
}

// generateOwnerID returns an identity unique across hosts, processes, and
// worker instances, so lease ownership checks can't collide.
func generateOwnerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), uuid.New().String()[:8])
}

// OwnerID returns this worker's lease identity.
func (w *Worker) OwnerID() string {
	return w.ownerID
}

// RunOnce reclaims stale leases, then claims and builds at most one job.
// A build failure is logged and the job is left processing: lease expiry
// returns it to the queue with attempts incremented, and the attempts
// ceiling moves it to failed. The worker never marks a job failed directly.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	released, err := w.jobs.ReleaseStale(ctx, time.Now(), w.cfg.MaxAttempts)
	if err != nil {
		return Result{}, fmt.Errorf("failed to release stale leases: %w", err)
	}
	if released > 0 {
		w.logger.Info("reclaimed stale archive leases", "count", released)
	}

	job, err := w.jobs.LeaseNextPending(ctx, w.ownerID, w.cfg.LeaseTTL)
	if err != nil {
		return Result{Released: released}, fmt.Errorf("failed to lease job: %w", err)
	}
	if job == nil {
		return Result{Released: released}, nil
	}

	w.logger.Info("leased archive job",
		"job_id", job.ID,
		"gallery_id", job.GalleryID,
		"attempt", job.Attempts+1,
	)

	buildCtx, cancel := context.WithTimeout(ctx, w.cfg.BuildTimeout)
	defer cancel()

	buildStart := time.Now()
	storagePath, size, err := w.build(buildCtx, job)
	if err != nil {
		w.logger.Error("archive build failed",
			"job_id", job.ID,
			"gallery_id", job.GalleryID,
			"attempt", job.Attempts+1,
			"error", err,
		)
		return Result{Released: released}, fmt.Errorf("build failed for job %s: %w", job.ID, err)
	}

	if err := w.jobs.Complete(ctx, job.ID, w.ownerID, storagePath, size); err != nil {
		return Result{Released: released}, fmt.Errorf("failed to complete job %s: %w", job.ID, err)
	}

	metrics.ArchiveBuildDuration.Observe(time.Since(buildStart).Seconds())
	metrics.ArchiveSizeBytes.Observe(float64(size))

	w.logger.Info("archive job completed",
		"job_id", job.ID,
		"gallery_id", job.GalleryID,
		"storage_path", storagePath,
		"size_bytes", size,
	)

	return Result{Processed: true, Released: released}, nil
}

// countingWriter tracks bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// fetchResult carries one prefetched image body.
type fetchResult struct {
	image *models.Image
	body  io.ReadCloser
	err   error
}

// build streams the gallery's images into a ZIP and uploads it. Image
// fetches run ahead of the writer with bounded concurrency; ZIP bytes flow
// through a pipe straight into the archive store.
func (w *Worker) build(ctx context.Context, job *models.ArchiveJob) (string, int64, error) {
	images, err := w.images.ListByGallery(ctx, job.GalleryID)
	if err != nil {
		return "", 0, fmt.Errorf("failed to list gallery images: %w", err)
	}
	if len(images) == 0 {
		return "", 0, fmt.Errorf("gallery %s has no images", job.GalleryID)
	}

	storagePath := "archives/" + job.ID + ".zip"

	pr, pw := io.Pipe()
	counter := &countingWriter{w: pw}

	buildErr := make(chan error, 1)
	go func() {
		err := w.writeZip(ctx, counter, images)
		if err != nil {
			pw.CloseWithError(err)
		} else {
			pw.Close()
		}
		buildErr <- err
	}()

	if err := w.archiveStore.Put(ctx, storagePath, pr, -1, "application/zip"); err != nil {
		pr.CloseWithError(err)
		<-buildErr
		return "", 0, fmt.Errorf("failed to upload archive: %w", err)
	}
	if err := <-buildErr; err != nil {
		return "", 0, err
	}

	return storagePath, counter.n, nil
}

// writeZip writes every image as a Store entry, in gallery position order.
// Store skips recompression: the images are already compressed formats, and
// deflating them again costs CPU for nothing.
func (w *Worker) writeZip(ctx context.Context, out io.Writer, images []*models.Image) error {
	zw := zip.NewWriter(out)

	results := w.prefetch(ctx, images)
	names := make(map[string]int, len(images))

	for res := range results {
		if res.err != nil {
			drainPrefetch(results)
			zw.Close()
			return fmt.Errorf("failed to fetch %s: %w", res.image.StoragePath, res.err)
		}

		header := &zip.FileHeader{
			Name:     uniqueEntryName(names, res.image.OriginalFilename),
			Method:   zip.Store,
			Modified: res.image.CreatedAt,
		}
		entry, err := zw.CreateHeader(header)
		if err != nil {
			res.body.Close()
			drainPrefetch(results)
			zw.Close()
			return fmt.Errorf("failed to create zip entry: %w", err)
		}

		_, err = io.Copy(entry, res.body)
		res.body.Close()
		if err != nil {
			drainPrefetch(results)
			zw.Close()
			return fmt.Errorf("failed to write zip entry: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		zw.Close()
		return err
	}

	return zw.Close()
}

// prefetch downloads image bodies ahead of the ZIP writer, at most
// FetchConcurrency in flight, delivering them in position order.
func (w *Worker) prefetch(ctx context.Context, images []*models.Image) <-chan fetchResult {
	pending := make(chan chan fetchResult, w.cfg.FetchConcurrency)
	out := make(chan fetchResult)

	go func() {
		defer close(pending)
		for _, img := range images {
			img := img
			ch := make(chan fetchResult, 1)

			select {
			case pending <- ch:
			case <-ctx.Done():
				return
			}

			go func() {
				body, err := w.imageStore.Get(ctx, img.StoragePath)
				ch <- fetchResult{image: img, body: body, err: err}
			}()
		}
	}()

	go func() {
		defer close(out)
		for ch := range pending {
			out <- <-ch
		}
	}()

	return out
}

// drainPrefetch closes any bodies still in flight after a build error.
func drainPrefetch(results <-chan fetchResult) {
	for res := range results {
		if res.body != nil {
			res.body.Close()
		}
	}
}

// uniqueEntryName disambiguates duplicate filenames deterministically:
// the second "photo.jpg" becomes "photo (2).jpg".
func uniqueEntryName(seen map[string]int, name string) string {
	name = path.Base(name)
	if name == "" || name == "." || name == "/" {
		name = "image"
	}

	seen[name]++
	if seen[name] == 1 {
		return name
	}

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s", base, seen[name], ext)
}
