// Package testutil wires mock repositories and object stores into a ready
// test environment so handler and worker tests stay short.
package testutil

import (
	"testing"
	"time"

	"github.com/dangsayz/12img/internal/config"
	"github.com/dangsayz/12img/internal/repository"
	repomock "github.com/dangsayz/12img/internal/repository/mock"
	storagemock "github.com/dangsayz/12img/internal/storage/mock"
	"github.com/dangsayz/12img/internal/token"
)

// TestSigningSecret signs tokens in tests. Never a production value.
const TestSigningSecret = "test-signing-secret-0123456789abcdef"

// Env bundles everything a handler needs, backed entirely by mocks.
type Env struct {
	Config       *config.Config
	Repos        *repository.Repositories
	Galleries    *repomock.GalleryRepository
	Images       *repomock.ImageRepository
	ArchiveJobs  *repomock.ArchiveJobRepository
	Users        *repomock.UserRepository
	Sessions     *repomock.SessionRepository
	ImageStore   *storagemock.Store
	ArchiveStore *storagemock.Store
	Signer       *token.Signer
}

// NewEnv builds a mock-backed environment with production-like defaults.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	galleries := repomock.NewGalleryRepository()
	images := repomock.NewImageRepository()
	jobs := repomock.NewArchiveJobRepository()
	users := repomock.NewUserRepository()
	sessions := repomock.NewSessionRepository()

	signer, err := token.NewSigner(TestSigningSecret)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}

	return &Env{
		Config: &config.Config{
			MaxFileSize:         50 * 1024 * 1024,
			MaxFilesPerBatch:    100,
			AllowedMimeTypes:    []string{"image/jpeg", "image/png", "image/webp", "image/heic", "image/gif"},
			GrantTTL:            5 * time.Minute,
			DownloadTokenMaxAge: 168 * time.Hour,
			CronSecret:          "test-cron-secret",
			CronIterations:      5,
			ArchiveRetention:    48 * time.Hour,
		},
		Repos: &repository.Repositories{
			Galleries:   galleries,
			Images:      images,
			ArchiveJobs: jobs,
			Sessions:    sessions,
			Users:       users,
		},
		Galleries:    galleries,
		Images:       images,
		ArchiveJobs:  jobs,
		Users:        users,
		Sessions:     sessions,
		ImageStore:   storagemock.NewStore(),
		ArchiveStore: storagemock.NewStore(),
		Signer:       signer,
	}
}
