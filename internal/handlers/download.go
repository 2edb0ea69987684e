package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dangsayz/12img/internal/config"
	"github.com/dangsayz/12img/internal/metrics"
	"github.com/dangsayz/12img/internal/models"
	"github.com/dangsayz/12img/internal/repository"
	"github.com/dangsayz/12img/internal/storage"
	"github.com/dangsayz/12img/internal/token"
)

// downloadPresignTTL bounds how long a redirect target stays usable. The
// redirect is followed immediately, so this only needs to cover slow clients.
const downloadPresignTTL = 15 * time.Minute

// DownloadHandler authorizes archive downloads and redirects to a presigned
// object URL. Archive bytes are never proxied through the application.
//
// Two authorization paths are accepted: a signed token in the query string,
// or a session whose user owns the archive's gallery. Failures answer 401
// without distinguishing which check failed.
func DownloadHandler(
	repos *repository.Repositories,
	archiveStore storage.ObjectStore,
	signer *token.Signer,
	cfg *config.Config,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		archiveID := strings.TrimPrefix(r.URL.Path, "/download/")
		if archiveID == "" || strings.Contains(archiveID, "/") {
			sendError(w, "Not found", "NOT_FOUND", http.StatusNotFound)
			return
		}

		auth := authorizeDownload(r, repos, signer, archiveID, cfg.DownloadTokenMaxAge)
		if auth == "" {
			metrics.DownloadsTotal.WithLabelValues("denied", "401").Inc()
			sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		job, err := repos.ArchiveJobs.GetByID(r.Context(), archiveID)
		if errors.Is(err, repository.ErrNotFound) {
			metrics.DownloadsTotal.WithLabelValues(auth, "404").Inc()
			sendError(w, "Archive not found", "NOT_FOUND", http.StatusNotFound)
			return
		}
		if err != nil {
			slog.Error("failed to load archive job", "archive_id", archiveID, "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		// The session path must still confirm ownership: the token path
		// already proved possession of a gallery-scoped secret.
		if auth == "session" {
			userID := sessionUserID(r, repos)
			if userID == "" || !ownsGallery(r, repos, job.GalleryID, userID) {
				metrics.DownloadsTotal.WithLabelValues("denied", "401").Inc()
				sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
				return
			}
		}

		switch job.Status {
		case models.ArchiveJobCompleted:
		case models.ArchiveJobPending, models.ArchiveJobProcessing:
			if r.Method == http.MethodHead {
				w.Header().Set("X-Archive-Status", string(job.Status))
				w.WriteHeader(http.StatusAccepted)
				metrics.DownloadsTotal.WithLabelValues(auth, "202").Inc()
				return
			}
			metrics.DownloadsTotal.WithLabelValues(auth, "202").Inc()
			sendJSON(w, http.StatusAccepted, archiveJobResponse{JobID: job.ID, Status: string(job.Status)})
			return
		default:
			metrics.DownloadsTotal.WithLabelValues(auth, "404").Inc()
			sendError(w, "Archive not found", "NOT_FOUND", http.StatusNotFound)
			return
		}

		if job.StoragePath == "" {
			slog.Error("completed archive job has no storage path", "archive_id", archiveID)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		if r.Method == http.MethodHead {
			info, err := archiveStore.Head(r.Context(), job.StoragePath)
			if err != nil {
				slog.Error("failed to stat archive object", "archive_id", archiveID, "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", info.ContentType)
			w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
			w.WriteHeader(http.StatusOK)
			metrics.DownloadsTotal.WithLabelValues(auth, "200").Inc()
			return
		}

		url, err := archiveStore.PresignGet(r.Context(), job.StoragePath, downloadPresignTTL)
		if err != nil {
			slog.Error("failed to presign archive download", "archive_id", archiveID, "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		metrics.DownloadsTotal.WithLabelValues(auth, "302").Inc()
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, url, http.StatusFound)
	}
}

// authorizeDownload reports which path authorized the request: "token",
// "session", or "" for neither. Ownership for the session path is checked
// after the job row is loaded.
func authorizeDownload(r *http.Request, repos *repository.Repositories, signer *token.Signer, archiveID string, maxAge time.Duration) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		if signer.VerifyDownload(archiveID, tok, time.Now(), maxAge) {
			return "token"
		}
		return ""
	}
	if sessionUserID(r, repos) != "" {
		return "session"
	}
	return ""
}

func sessionUserID(r *http.Request, repos *repository.Repositories) string {
	bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || bearer == "" {
		return ""
	}
	userID, err := repos.Sessions.ResolveUser(r.Context(), bearer)
	if err != nil {
		return ""
	}
	return userID
}

func ownsGallery(r *http.Request, repos *repository.Repositories, galleryID, userID string) bool {
	gallery, err := repos.Galleries.GetByID(r.Context(), galleryID)
	if err != nil {
		return false
	}
	return gallery.UserID == userID
}
