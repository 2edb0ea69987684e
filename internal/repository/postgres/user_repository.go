package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dangsayz/12img/internal/models"
	"github.com/dangsayz/12img/internal/repository"
)

// UserRepository implements repository.UserRepository for PostgreSQL.
type UserRepository struct {
	pool *Pool
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, email, plan_id FROM users WHERE id = $1`

	user := &models.User{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&user.ID, &user.Email, &user.PlanID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return user, nil
}

// GetPlan retrieves the plan associated with a user.
func (r *UserRepository) GetPlan(ctx context.Context, userID string) (*models.Plan, error) {
	query := `
		SELECT p.id, p.name, p.storage_limit_bytes, p.image_limit
		FROM plans p
		JOIN users u ON u.plan_id = p.id
		WHERE u.id = $1
	`

	plan := &models.Plan{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&plan.ID,
		&plan.Name,
		&plan.StorageLimitBytes,
		&plan.ImageLimit,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user plan: %w", err)
	}

	return plan, nil
}
