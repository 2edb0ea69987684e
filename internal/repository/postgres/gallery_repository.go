package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dangsayz/12img/internal/models"
	"github.com/dangsayz/12img/internal/repository"
)

// GalleryRepository implements repository.GalleryRepository for PostgreSQL.
type GalleryRepository struct {
	pool *Pool
}

// NewGalleryRepository creates a new PostgreSQL gallery repository.
func NewGalleryRepository(pool *Pool) *GalleryRepository {
	return &GalleryRepository{pool: pool}
}

// GetByID retrieves a gallery by ID.
func (r *GalleryRepository) GetByID(ctx context.Context, id string) (*models.Gallery, error) {
	query := `
		SELECT id, user_id, title, cover_image_id, created_at
		FROM galleries
		WHERE id = $1
	`

	gallery := &models.Gallery{}
	var coverImageID sql.NullString

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&gallery.ID,
		&gallery.UserID,
		&gallery.Title,
		&coverImageID,
		&gallery.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query gallery: %w", err)
	}

	gallery.CoverImageID = scanNullableString(coverImageID)
	return gallery, nil
}

// SetCoverIfUnset assigns imageID as the gallery cover only when no cover is
// set yet. Returns true when this call set the cover. The conditional UPDATE
// makes concurrent confirms race-safe: exactly one wins.
func (r *GalleryRepository) SetCoverIfUnset(ctx context.Context, galleryID, imageID string) (bool, error) {
	query := `
		UPDATE galleries
		SET cover_image_id = $2
		WHERE id = $1 AND cover_image_id IS NULL
	`

	tag, err := r.pool.Exec(ctx, query, galleryID, imageID)
	if err != nil {
		return false, fmt.Errorf("failed to set gallery cover: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
