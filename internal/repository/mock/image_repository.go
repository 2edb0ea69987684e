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

// ImageRepository is a mock implementation of repository.ImageRepository.
// Position assignment and idempotent re-insert match the database contract.
type ImageRepository struct {
	mu     sync.Mutex
	images map[string]*models.Image // by ID
	byPath map[string]*models.Image // by storage path

	// Galleries maps gallery ID to owning user ID, for UsageByUser.
	// Populate via SetGalleryOwner in test setup.
	galleryOwners map[string]string

	// Error injection for testing error handling
	// NOTE: Set these BEFORE concurrent access begins
	InsertAtPositionError error
	GetByStoragePathError error
	ListByGalleryError    error
	UsageByUserError      error

	// Custom behavior hooks
	// NOTE: Set these BEFORE concurrent access begins
	OnInsertAtPosition func(ctx context.Context, image *models.Image) error
	OnUsageByUser      func(ctx context.Context, userID string) (*repository.UserUsage, error)
}

// NewImageRepository creates a new mock ImageRepository.
func NewImageRepository() *ImageRepository {
	return &ImageRepository{
		images:        make(map[string]*models.Image),
		byPath:        make(map[string]*models.Image),
		galleryOwners: make(map[string]string),
	}
}

// Ensure ImageRepository implements repository.ImageRepository
var _ repository.ImageRepository = (*ImageRepository)(nil)

// Reset clears all images and injected errors for a fresh test state.
func (r *ImageRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.images = make(map[string]*models.Image)
	r.byPath = make(map[string]*models.Image)
	r.galleryOwners = make(map[string]string)

	r.InsertAtPositionError = nil
	r.GetByStoragePathError = nil
	r.ListByGalleryError = nil
	r.UsageByUserError = nil

	r.OnInsertAtPosition = nil
	r.OnUsageByUser = nil
}

func deepCopyImage(src *models.Image) *models.Image {
	if src == nil {
		return nil
	}
	dst := *src
	if src.Width != nil {
		w := *src.Width
		dst.Width = &w
	}
	if src.Height != nil {
		h := *src.Height
		dst.Height = &h
	}
	return &dst
}

// SetGalleryOwner records gallery ownership so UsageByUser can aggregate
// across a user's galleries.
func (r *ImageRepository) SetGalleryOwner(galleryID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.galleryOwners[galleryID] = userID
}

// InsertAtPosition appends an image at the gallery's next position.
// Re-inserting an existing storage path populates the image from the
// existing row instead of creating a duplicate.
func (r *ImageRepository) InsertAtPosition(ctx context.Context, image *models.Image) error {
	if r.OnInsertAtPosition != nil {
		return r.OnInsertAtPosition(ctx, image)
	}
	if r.InsertAtPositionError != nil {
		return r.InsertAtPositionError
	}
	if image == nil || image.GalleryID == "" || image.StoragePath == "" {
		return repository.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byPath[image.StoragePath]; ok {
		*image = *deepCopyImage(existing)
		return nil
	}

	maxPos := -1
	for _, img := range r.images {
		if img.GalleryID == image.GalleryID && img.Position > maxPos {
			maxPos = img.Position
		}
	}

	image.ID = uuid.New().String()
	image.Position = maxPos + 1
	image.CreatedAt = time.Now()

	stored := deepCopyImage(image)
	r.images[image.ID] = stored
	r.byPath[image.StoragePath] = stored
	return nil
}

// GetByStoragePath retrieves an image by storage path.
func (r *ImageRepository) GetByStoragePath(ctx context.Context, storagePath string) (*models.Image, error) {
	if r.GetByStoragePathError != nil {
		return nil, r.GetByStoragePathError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	img, ok := r.byPath[storagePath]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return deepCopyImage(img), nil
}

// ListByGallery returns a gallery's images ordered by position.
func (r *ImageRepository) ListByGallery(ctx context.Context, galleryID string) ([]*models.Image, error) {
	if r.ListByGalleryError != nil {
		return nil, r.ListByGalleryError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var images []*models.Image
	for _, img := range r.images {
		if img.GalleryID == galleryID {
			images = append(images, deepCopyImage(img))
		}
	}
	sort.Slice(images, func(i, j int) bool {
		return images[i].Position < images[j].Position
	})
	return images, nil
}

// UsageByUser aggregates stored bytes and image count across the user's
// galleries registered via SetGalleryOwner.
func (r *ImageRepository) UsageByUser(ctx context.Context, userID string) (*repository.UserUsage, error) {
	if r.OnUsageByUser != nil {
		return r.OnUsageByUser(ctx, userID)
	}
	if r.UsageByUserError != nil {
		return nil, r.UsageByUserError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	usage := &repository.UserUsage{}
	for _, img := range r.images {
		if r.galleryOwners[img.GalleryID] != userID {
			continue
		}
		usage.StorageBytes += img.FileSize
		usage.ImageCount++
	}
	return usage, nil
}
