package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

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

// confirmWorkers bounds parallel confirmations per request.
const confirmWorkers = 8

// ConfirmHandler records uploaded objects as gallery images. Each upload in
// the batch is confirmed independently: a bad token or missing object fails
// that one file and never its siblings. Re-confirming an already-recorded
// storage path returns the existing image ID.
func ConfirmHandler(repos *repository.Repositories, imageStore storage.ObjectStore, signer *token.Signer, cfg *config.Config) http.HandlerFunc {
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
		if !ok || op != "confirm" {
			sendError(w, "Not found", "NOT_FOUND", http.StatusNotFound)
			return
		}

		var req models.ConfirmRequest
		if err := decodeJSON(w, r, &req); err != nil {
			sendError(w, "Invalid request body", "VALIDATION_ERROR", http.StatusBadRequest)
			return
		}
		if len(req.Uploads) == 0 {
			sendError(w, "No uploads in request", "VALIDATION_ERROR", http.StatusBadRequest)
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

		type outcome struct {
			image   *models.Image
			failure *models.ConfirmFailure
		}
		outcomes := make([]outcome, len(req.Uploads))

		g, ctx := errgroup.WithContext(r.Context())
		g.SetLimit(confirmWorkers)
		for i, u := range req.Uploads {
			i, u := i, u
			g.Go(func() error {
				img, failErr := confirmOne(ctx, repos, imageStore, signer, galleryID, &u)
				if failErr != "" {
					outcomes[i] = outcome{failure: &models.ConfirmFailure{LocalID: u.LocalID, Error: failErr}}
					return nil
				}
				outcomes[i] = outcome{image: img}
				return nil
			})
		}
		g.Wait()

		resp := models.ConfirmResponse{}
		var confirmed []*models.Image
		for _, o := range outcomes {
			if o.failure != nil {
				metrics.ConfirmsTotal.WithLabelValues("failure").Inc()
				resp.Failed = append(resp.Failed, *o.failure)
				continue
			}
			metrics.ConfirmsTotal.WithLabelValues("success").Inc()
			confirmed = append(confirmed, o.image)
			resp.ImageIDs = append(resp.ImageIDs, o.image.ID)
		}

		// First image by stored position becomes the cover when none is set.
		if len(confirmed) > 0 {
			sort.Slice(confirmed, func(i, j int) bool {
				return confirmed[i].Position < confirmed[j].Position
			})
			if _, err := repos.Galleries.SetCoverIfUnset(r.Context(), galleryID, confirmed[0].ID); err != nil {
				slog.Error("failed to set gallery cover", "gallery_id", galleryID, "error", err)
			}
		}

		slog.Info("uploads confirmed",
			"user_id", userID,
			"gallery_id", galleryID,
			"confirmed", len(resp.ImageIDs),
			"failed", len(resp.Failed),
		)

		sendJSON(w, http.StatusOK, resp)
	}
}

// confirmOne validates and records a single upload. Returns a non-empty
// failure message instead of an error so siblings keep going.
func confirmOne(ctx context.Context, repos *repository.Repositories, imageStore storage.ObjectStore, signer *token.Signer, galleryID string, u *models.ConfirmUpload) (*models.Image, string) {
	if u.StoragePath == "" || u.Token == "" {
		return nil, "missing storage path or token"
	}

	// The grant token proves this server issued a grant for exactly this
	// storage path. Expired grants fail closed.
	if !signer.VerifyGrant(u.StoragePath, u.Token, time.Now()) {
		return nil, "invalid or expired upload token"
	}

	info, err := imageStore.Head(ctx, u.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "object not found in storage"
		}
		slog.Error("storage head check failed", "storage_path", u.StoragePath, "error", err)
		return nil, "storage check failed"
	}
	if u.FileSizeBytes > 0 && info.Size != u.FileSizeBytes {
		return nil, "stored object size does not match"
	}

	img := &models.Image{
		GalleryID:        galleryID,
		StoragePath:      u.StoragePath,
		OriginalFilename: utils.SanitizeFilename(u.OriginalFilename),
		FileSize:         info.Size,
		MimeType:         u.MimeType,
		Width:            u.Width,
		Height:           u.Height,
	}
	if err := repos.Images.InsertAtPosition(ctx, img); err != nil {
		slog.Error("failed to insert image", "storage_path", u.StoragePath, "error", err)
		return nil, "failed to record image"
	}

	return img, ""
}
