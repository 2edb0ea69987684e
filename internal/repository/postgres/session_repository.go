package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dangsayz/12img/internal/repository"
)

// SessionRepository implements repository.SessionRepository for PostgreSQL.
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// ResolveUser returns the user ID for an unexpired session token.
func (r *SessionRepository) ResolveUser(ctx context.Context, sessionToken string) (string, error) {
	if sessionToken == "" {
		return "", repository.ErrInvalidInput
	}

	query := `
		SELECT user_id
		FROM sessions
		WHERE token = $1 AND expires_at > NOW()
	`

	var userID string
	err := r.pool.QueryRow(ctx, query, sessionToken).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve session: %w", err)
	}

	return userID, nil
}
