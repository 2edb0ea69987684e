package mock

import (
	"context"
	"sync"

	"github.com/dangsayz/12img/internal/models"
	"github.com/dangsayz/12img/internal/repository"
)

// GalleryRepository is a mock implementation of repository.GalleryRepository.
type GalleryRepository struct {
	mu        sync.Mutex
	galleries map[string]*models.Gallery

	// Error injection for testing error handling
	// NOTE: Set these BEFORE concurrent access begins
	GetByIDError         error
	SetCoverIfUnsetError error

	// Custom behavior hooks
	// NOTE: Set these BEFORE concurrent access begins
	OnGetByID func(ctx context.Context, id string) (*models.Gallery, error)
}

// NewGalleryRepository creates a new mock GalleryRepository.
func NewGalleryRepository() *GalleryRepository {
	return &GalleryRepository{
		galleries: make(map[string]*models.Gallery),
	}
}

// Ensure GalleryRepository implements repository.GalleryRepository
var _ repository.GalleryRepository = (*GalleryRepository)(nil)

// Reset clears all galleries and injected errors for a fresh test state.
func (r *GalleryRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.galleries = make(map[string]*models.Gallery)
	r.GetByIDError = nil
	r.SetCoverIfUnsetError = nil
	r.OnGetByID = nil
}

func deepCopyGallery(src *models.Gallery) *models.Gallery {
	if src == nil {
		return nil
	}
	dst := *src
	if src.CoverImageID != nil {
		cover := *src.CoverImageID
		dst.CoverImageID = &cover
	}
	return &dst
}

// SetGallery installs a gallery directly, for test setup.
func (r *GalleryRepository) SetGallery(gallery *models.Gallery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.galleries[gallery.ID] = deepCopyGallery(gallery)
}

// GetByID retrieves a gallery by ID.
func (r *GalleryRepository) GetByID(ctx context.Context, id string) (*models.Gallery, error) {
	if r.OnGetByID != nil {
		return r.OnGetByID(ctx, id)
	}
	if r.GetByIDError != nil {
		return nil, r.GetByIDError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	gallery, ok := r.galleries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return deepCopyGallery(gallery), nil
}

// SetCoverIfUnset sets the cover only when none is set, returning whether
// this call won.
func (r *GalleryRepository) SetCoverIfUnset(ctx context.Context, galleryID, imageID string) (bool, error) {
	if r.SetCoverIfUnsetError != nil {
		return false, r.SetCoverIfUnsetError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	gallery, ok := r.galleries[galleryID]
	if !ok || gallery.CoverImageID != nil {
		return false, nil
	}
	gallery.CoverImageID = &imageID
	return true, nil
}
