package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dangsayz/12img/internal/config"
	"github.com/dangsayz/12img/internal/metrics"
	"github.com/dangsayz/12img/internal/middleware"
	"github.com/dangsayz/12img/internal/models"
	"github.com/dangsayz/12img/internal/repository"
	"github.com/dangsayz/12img/internal/storage"
	"github.com/dangsayz/12img/internal/token"
	"github.com/dangsayz/12img/internal/utils"
)

// mimeExtensions maps allowed MIME types to storage path extensions.
var mimeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/gif":  ".gif",
}

// GrantsHandler issues batches of signed upload URLs. The batch is
// all-or-nothing: any validation or quota failure returns zero grants,
// before anything is presigned.
func GrantsHandler(repos *repository.Repositories, imageStore storage.ObjectStore, signer *token.Signer, cfg *config.Config) http.HandlerFunc {
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
		if !ok || op != "grants" {
			sendError(w, "Not found", "NOT_FOUND", http.StatusNotFound)
			return
		}

		var req models.GrantRequest
		if err := decodeJSON(w, r, &req); err != nil {
			sendError(w, "Invalid request body", "VALIDATION_ERROR", http.StatusBadRequest)
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
		// Non-owners get the same answer as a missing gallery.
		if gallery.UserID != userID {
			sendError(w, "Gallery not found", "NOT_FOUND", http.StatusNotFound)
			return
		}

		if msg, code, status := validateGrantBatch(&req, cfg); msg != "" {
			metrics.GrantsIssuedTotal.WithLabelValues("rejected").Inc()
			sendError(w, msg, code, status)
			return
		}

		if err := checkQuota(r, repos, userID, &req); err != nil {
			if errors.Is(err, repository.ErrQuotaExceeded) {
				metrics.GrantsIssuedTotal.WithLabelValues("quota_denied").Inc()
				slog.Info("grant batch denied by quota",
					"user_id", userID,
					"gallery_id", galleryID,
					"files", len(req.Files),
				)
				sendError(w, "Plan quota exceeded: free up space or upgrade the plan", "QUOTA_EXCEEDED", http.StatusForbidden)
				return
			}
			slog.Error("quota check failed", "user_id", userID, "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		expiresAt := time.Now().Add(cfg.GrantTTL)
		grants := make([]models.UploadGrant, len(req.Files))

		g, ctx := errgroup.WithContext(r.Context())
		for i, f := range req.Files {
			i, f := i, f
			g.Go(func() error {
				storagePath := fmt.Sprintf("images/%s/%s/%s%s",
					userID, galleryID, uuid.New().String(), mimeExtensions[f.MimeType])

				signedURL, err := imageStore.PresignPut(ctx, storagePath, f.MimeType, cfg.GrantTTL)
				if err != nil {
					return fmt.Errorf("presign failed for %s: %w", f.LocalID, err)
				}

				grants[i] = models.UploadGrant{
					LocalID:     f.LocalID,
					StoragePath: storagePath,
					SignedURL:   signedURL,
					Token:       signer.SignGrant(storagePath, expiresAt),
					ExpiresAt:   expiresAt,
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			slog.Error("grant presigning failed", "gallery_id", galleryID, "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		metrics.GrantsIssuedTotal.WithLabelValues("issued").Inc()
		slog.Info("upload grants issued",
			"user_id", userID,
			"gallery_id", galleryID,
			"files", len(grants),
		)

		sendJSON(w, http.StatusOK, models.GrantResponse{Grants: grants})
	}
}

// validateGrantBatch checks batch shape, per-file sizes, and MIME types.
// Returns an empty message when the batch is valid.
func validateGrantBatch(req *models.GrantRequest, cfg *config.Config) (msg, code string, status int) {
	if len(req.Files) == 0 {
		return "No files in request", "VALIDATION_ERROR", http.StatusBadRequest
	}
	if len(req.Files) > cfg.MaxFilesPerBatch {
		return fmt.Sprintf("Too many files in one batch (%d > %d)", len(req.Files), cfg.MaxFilesPerBatch),
			"VALIDATION_ERROR", http.StatusBadRequest
	}

	seen := make(map[string]bool, len(req.Files))
	for i := range req.Files {
		f := &req.Files[i]
		if f.LocalID == "" {
			return "File entry missing local_id", "VALIDATION_ERROR", http.StatusBadRequest
		}
		if seen[f.LocalID] {
			return fmt.Sprintf("Duplicate local_id %q", f.LocalID), "VALIDATION_ERROR", http.StatusBadRequest
		}
		seen[f.LocalID] = true

		name := utils.SanitizeFilename(f.OriginalFilename)
		f.OriginalFilename = name

		if f.FileSizeBytes <= 0 {
			return fmt.Sprintf("File %s has invalid size", name), "VALIDATION_ERROR", http.StatusBadRequest
		}
		if f.FileSizeBytes > cfg.MaxFileSize {
			return fmt.Sprintf("File %s exceeds the maximum size of %d bytes", name, cfg.MaxFileSize),
				"FILE_TOO_LARGE", http.StatusRequestEntityTooLarge
		}
		if !cfg.MimeTypeAllowed(f.MimeType) {
			return fmt.Sprintf("File %s has unsupported type %s", name, f.MimeType),
				"VALIDATION_ERROR", http.StatusBadRequest
		}
	}

	return "", "", 0
}

// checkQuota projects the batch onto the owner's plan limits. Denial is
// fail-closed: any doubt (missing plan, usage query failure) blocks the
// batch rather than risking an over-quota upload.
func checkQuota(r *http.Request, repos *repository.Repositories, userID string, req *models.GrantRequest) error {
	plan, err := repos.Users.GetPlan(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ErrQuotaExceeded
		}
		return err
	}

	if plan.StorageUnlimited() && plan.ImagesUnlimited() {
		return nil
	}

	usage, err := repos.Images.UsageByUser(r.Context(), userID)
	if err != nil {
		return err
	}

	var batchBytes int64
	for _, f := range req.Files {
		batchBytes += f.FileSizeBytes
	}

	if !plan.StorageUnlimited() && usage.StorageBytes+batchBytes > plan.StorageLimitBytes {
		return repository.ErrQuotaExceeded
	}
	if !plan.ImagesUnlimited() && usage.ImageCount+int64(len(req.Files)) > plan.ImageLimit {
		return repository.ErrQuotaExceeded
	}

	return nil
}
