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

// ImageRepository implements repository.ImageRepository for PostgreSQL.
type ImageRepository struct {
	pool *Pool
}

// NewImageRepository creates a new PostgreSQL image repository.
func NewImageRepository(pool *Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

// InsertAtPosition inserts a new image row appended after the gallery's current
// maximum position. A transaction-scoped advisory lock on the gallery ID
// serializes the append, so concurrent confirmations for the same gallery get
// distinct, monotonically increasing positions. Re-confirming an existing
// storage path returns the existing row instead of creating a duplicate.
func (r *ImageRepository) InsertAtPosition(ctx context.Context, image *models.Image) error {
	query := `
		INSERT INTO images (
			gallery_id, position, storage_path, original_filename,
			file_size, mime_type, width, height
		)
		SELECT $1, COALESCE(MAX(position) + 1, 0), $2, $3, $4, $5, $6, $7
		FROM images WHERE gallery_id = $1
		ON CONFLICT (storage_path) DO NOTHING
		RETURNING id, position, created_at
	`

	_, err := withRetry(ctx, 3, func() (struct{}, error) {
		tx, err := r.pool.BeginTx(ctx, TxOptions())
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }() // Safe to ignore: no-op after commit

		// Advisory lock released automatically at transaction end.
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", image.GalleryID); err != nil {
			return struct{}{}, fmt.Errorf("failed to lock gallery for append: %w", err)
		}

		err = tx.QueryRow(
			ctx,
			query,
			image.GalleryID,
			image.StoragePath,
			image.OriginalFilename,
			image.FileSize,
			image.MimeType,
			image.Width,
			image.Height,
		).Scan(&image.ID, &image.Position, &image.CreatedAt)
		if err != nil {
			return struct{}{}, err
		}

		if err := tx.Commit(ctx); err != nil {
			return struct{}{}, fmt.Errorf("failed to commit insert: %w", err)
		}
		return struct{}{}, nil
	})

	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict path: the storage path was already confirmed. Surface the
		// existing row so a replayed confirmation stays idempotent.
		existing, getErr := r.GetByStoragePath(ctx, image.StoragePath)
		if getErr != nil {
			return fmt.Errorf("failed to load existing image after conflict: %w", getErr)
		}
		*image = *existing
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}

	return nil
}

// GetByStoragePath retrieves an image by its storage path.
func (r *ImageRepository) GetByStoragePath(ctx context.Context, storagePath string) (*models.Image, error) {
	query := `
		SELECT id, gallery_id, position, storage_path, original_filename,
		       file_size, mime_type, width, height, created_at
		FROM images
		WHERE storage_path = $1
	`

	image := &models.Image{}
	var width, height sql.NullInt64

	err := r.pool.QueryRow(ctx, query, storagePath).Scan(
		&image.ID,
		&image.GalleryID,
		&image.Position,
		&image.StoragePath,
		&image.OriginalFilename,
		&image.FileSize,
		&image.MimeType,
		&width,
		&height,
		&image.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query image: %w", err)
	}

	if width.Valid {
		v := int(width.Int64)
		image.Width = &v
	}
	if height.Valid {
		v := int(height.Int64)
		image.Height = &v
	}

	return image, nil
}

// ListByGallery returns all images in a gallery ordered by position.
func (r *ImageRepository) ListByGallery(ctx context.Context, galleryID string) ([]*models.Image, error) {
	query := `
		SELECT id, gallery_id, position, storage_path, original_filename,
		       file_size, mime_type, width, height, created_at
		FROM images
		WHERE gallery_id = $1
		ORDER BY position ASC
	`

	rows, err := r.pool.Query(ctx, query, galleryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var images []*models.Image
	for rows.Next() {
		image := &models.Image{}
		var width, height sql.NullInt64

		err := rows.Scan(
			&image.ID,
			&image.GalleryID,
			&image.Position,
			&image.StoragePath,
			&image.OriginalFilename,
			&image.FileSize,
			&image.MimeType,
			&width,
			&height,
			&image.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}

		if width.Valid {
			v := int(width.Int64)
			image.Width = &v
		}
		if height.Valid {
			v := int(height.Int64)
			image.Height = &v
		}

		images = append(images, image)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate images: %w", err)
	}

	return images, nil
}

// UsageByUser returns total stored bytes and image count across all of a user's galleries.
func (r *ImageRepository) UsageByUser(ctx context.Context, userID string) (*repository.UserUsage, error) {
	query := `
		SELECT COALESCE(SUM(i.file_size), 0), COUNT(i.id)
		FROM images i
		JOIN galleries g ON g.id = i.gallery_id
		WHERE g.user_id = $1
	`

	usage := &repository.UserUsage{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(&usage.StorageBytes, &usage.ImageCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}

	return usage, nil
}
