package repository

import (
	"context"

	"github.com/dangsayz/12img/internal/models"
)

// UserUsage summarizes a user's current consumption against plan limits.
type UserUsage struct {
	StorageBytes int64
	ImageCount   int64
}

// ImageRepository defines image-related database operations.
// All methods accept a context for cancellation and timeout support.
type ImageRepository interface {
	// InsertAtPosition inserts a new image row appended after the gallery's
	// current maximum position. The append is a single atomic statement, so
	// stored order is stable and race-free under concurrent confirmations.
	//
	// Inserting an already-confirmed storage path is idempotent: the existing
	// row's ID is returned and image.Position/image.ID are populated from it,
	// never creating a second row for the same object.
	InsertAtPosition(ctx context.Context, image *models.Image) error

	// GetByStoragePath retrieves an image by its storage path.
	// Returns ErrNotFound if no image references the path.
	GetByStoragePath(ctx context.Context, storagePath string) (*models.Image, error)

	// ListByGallery returns all images in a gallery ordered by position.
	ListByGallery(ctx context.Context, galleryID string) ([]*models.Image, error)

	// UsageByUser returns total stored bytes and image count across all of a
	// user's galleries, for quota projection.
	UsageByUser(ctx context.Context, userID string) (*UserUsage, error)
}
