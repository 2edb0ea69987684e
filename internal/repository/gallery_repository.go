package repository

import (
	"context"

	"github.com/dangsayz/12img/internal/models"
)

// GalleryRepository defines gallery-related database operations.
type GalleryRepository interface {
	// GetByID retrieves a gallery by ID.
	// Returns ErrNotFound if the gallery doesn't exist.
	GetByID(ctx context.Context, id string) (*models.Gallery, error)

	// SetCoverIfUnset sets the gallery cover to imageID only when no cover is
	// currently set. The update is conditional at the database layer so
	// concurrent confirmations cannot overwrite an existing cover.
	// Returns true if the cover was set by this call.
	SetCoverIfUnset(ctx context.Context, galleryID, imageID string) (bool, error)
}

// UserRepository defines user lookups needed for quota enforcement and
// download authorization. Account lifecycle is owned by the external
// identity provider.
type UserRepository interface {
	// GetByID retrieves a user by ID.
	// Returns ErrNotFound if the user doesn't exist.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetPlan retrieves the plan limits for a user.
	// Returns ErrNotFound if the user or plan doesn't exist.
	GetPlan(ctx context.Context, userID string) (*models.Plan, error)
}

// SessionRepository resolves session tokens issued by the external auth
// provider into user IDs. This is the only seam the core has into auth.
type SessionRepository interface {
	// ResolveUser returns the user ID for a valid, unexpired session token.
	// Returns ErrNotFound for unknown or expired tokens.
	ResolveUser(ctx context.Context, sessionToken string) (string, error)
}
