package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dangsayz/12img/internal/models"
)

// SeedOwner installs a user on the given plan plus one gallery they own,
// and returns a session token for them.
func (e *Env) SeedOwner(t *testing.T, userID, galleryID string, plan *models.Plan) string {
	t.Helper()

	if plan == nil {
		plan = UnlimitedPlan()
	}
	e.Users.SetUser(&models.User{ID: userID, Email: userID + "@example.com", PlanID: plan.ID}, plan)
	e.Galleries.SetGallery(&models.Gallery{
		ID:        galleryID,
		UserID:    userID,
		Title:     "Test Gallery",
		CreatedAt: time.Now(),
	})
	e.Images.SetGalleryOwner(galleryID, userID)

	sessionToken := "session-" + userID
	e.Sessions.SetSession(sessionToken, userID)
	return sessionToken
}

// SeedImages confirms n images into a gallery, with objects present in the
// image store. Filenames are photo-001.jpg, photo-002.jpg, and so on.
func (e *Env) SeedImages(t *testing.T, galleryID string, n int) []*models.Image {
	t.Helper()

	images := make([]*models.Image, n)
	for i := 0; i < n; i++ {
		data := make([]byte, 100+i)
		path := fmt.Sprintf("images/test/%s/photo-%03d.jpg", galleryID, i+1)
		e.ImageStore.SetObject(path, data, "image/jpeg")

		img := &models.Image{
			GalleryID:        galleryID,
			StoragePath:      path,
			OriginalFilename: fmt.Sprintf("photo-%03d.jpg", i+1),
			FileSize:         int64(len(data)),
			MimeType:         "image/jpeg",
		}
		if err := e.Images.InsertAtPosition(context.Background(), img); err != nil {
			t.Fatalf("failed to seed image %d: %v", i, err)
		}
		images[i] = img
	}
	return images
}

// UnlimitedPlan returns a plan with no storage or image caps.
func UnlimitedPlan() *models.Plan {
	return &models.Plan{ID: "plan-unlimited", Name: "Studio"}
}

// LimitedPlan returns a plan capped at the given bytes and image count.
func LimitedPlan(storageBytes, imageCount int64) *models.Plan {
	return &models.Plan{
		ID:                "plan-limited",
		Name:              "Starter",
		StorageLimitBytes: storageBytes,
		ImageLimit:        imageCount,
	}
}
