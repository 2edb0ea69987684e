package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dangsayz/12img/internal/middleware"
	"github.com/dangsayz/12img/internal/models"
	"github.com/dangsayz/12img/internal/repository"
)

// archiveJobResponse describes a gallery's archive job state to the client.
type archiveJobResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// EnqueueArchiveHandler queues a ZIP build for a gallery. Requesting an
// archive while one is already queued or building returns the existing job
// instead of stacking duplicates.
func EnqueueArchiveHandler(repos *repository.Repositories) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := middleware.UserID(r.Context())
		if !ok {
			sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		galleryID, op, ok := galleryPath(r.URL.Path)
		if !ok || op != "archive" {
			sendError(w, "Not found", "NOT_FOUND", http.StatusNotFound)
			return
		}

		gallery, err := repos.Galleries.GetByID(r.Context(), galleryID)
		if errors.Is(err, repository.ErrNotFound) {
			sendError(w, "Gallery not found", "NOT_FOUND", http.StatusNotFound)
			return
		}
		if err != nil {
			slog.Error("failed to load gallery", "gallery_id", galleryID, "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if gallery.UserID != userID {
			sendError(w, "Gallery not found", "NOT_FOUND", http.StatusNotFound)
			return
		}

		images, err := repos.Images.ListByGallery(r.Context(), galleryID)
		if err != nil {
			slog.Error("failed to list gallery images", "gallery_id", galleryID, "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if len(images) == 0 {
			sendError(w, "Gallery has no images to archive", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}

		latest, err := repos.ArchiveJobs.GetLatestByGallery(r.Context(), galleryID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to query latest archive job", "gallery_id", galleryID, "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if latest != nil && (latest.Status == models.ArchiveJobPending || latest.Status == models.ArchiveJobProcessing) {
			sendJSON(w, http.StatusOK, archiveJobResponse{JobID: latest.ID, Status: string(latest.Status)})
			return
		}

		job := &models.ArchiveJob{GalleryID: galleryID}
		if err := repos.ArchiveJobs.Enqueue(r.Context(), job); err != nil {
			slog.Error("failed to enqueue archive job", "gallery_id", galleryID, "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		slog.Info("archive job enqueued",
			"job_id", job.ID,
			"gallery_id", galleryID,
			"user_id", userID,
			"images", len(images),
		)

		sendJSON(w, http.StatusAccepted, archiveJobResponse{JobID: job.ID, Status: string(job.Status)})
	}
}
