package postgres

import (
	"context"
	"fmt"

	"github.com/dangsayz/12img/internal/config"
	"github.com/dangsayz/12img/internal/repository"
)

// NewRepositories creates all PostgreSQL repository implementations.
// It opens a connection pool, runs migrations, and returns the repositories
// plus a cleanup function that closes the pool.
func NewRepositories(ctx context.Context, cfg *config.Config) (*repository.Repositories, func(), error) {
	pool, err := NewPool(ctx, cfg.DatabaseURL, 25)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cleanup := func() {
		pool.Close()
	}

	repos := &repository.Repositories{
		Galleries:   NewGalleryRepository(pool),
		Images:      NewImageRepository(pool),
		ArchiveJobs: NewArchiveJobRepository(pool),
		Sessions:    NewSessionRepository(pool),
		Users:       NewUserRepository(pool),
		Cleanup:     cleanup,
	}

	return repos, cleanup, nil
}

// NewRepositoriesWithPool creates repositories over an existing pool.
// The caller owns the pool; Cleanup is nil.
func NewRepositoriesWithPool(pool *Pool) (*repository.Repositories, error) {
	if pool == nil {
		return nil, repository.ErrNilDatabase
	}

	return &repository.Repositories{
		Galleries:   NewGalleryRepository(pool),
		Images:      NewImageRepository(pool),
		ArchiveJobs: NewArchiveJobRepository(pool),
		Sessions:    NewSessionRepository(pool),
		Users:       NewUserRepository(pool),
	}, nil
}
