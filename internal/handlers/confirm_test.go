package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dangsayz/12img/internal/middleware"
	"github.com/dangsayz/12img/internal/models"
	"github.com/dangsayz/12img/internal/testutil"
)

func confirmRequest(t *testing.T, env *testutil.Env, userID, galleryID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/galleries/"+galleryID+"/confirm", bytes.NewReader(payload))
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}

	rec := httptest.NewRecorder()
	ConfirmHandler(env.Repos, env.ImageStore, env.Signer, env.Config)(rec, req)
	return rec
}

// uploadedFile stages an object in the image store and returns a valid
// confirm entry for it.
func uploadedFile(env *testutil.Env, localID, path, name string, size int) models.ConfirmUpload {
	env.ImageStore.SetObject(path, make([]byte, size), "image/jpeg")
	return models.ConfirmUpload{
		LocalID:          localID,
		StoragePath:      path,
		Token:            env.Signer.SignGrant(path, time.Now().Add(5*time.Minute)),
		OriginalFilename: name,
		FileSizeBytes:    int64(size),
		MimeType:         "image/jpeg",
	}
}

func TestConfirmRecordsImages(t *testing.T) {
	env := testutil.NewEnv(t)
	env.SeedOwner(t, "user-1", "gal-1", nil)

	rec := confirmRequest(t, env, "user-1", "gal-1", models.ConfirmRequest{
		Uploads: []models.ConfirmUpload{
			uploadedFile(env, "a", "images/user-1/gal-1/aaa.jpg", "sunset.jpg", 100),
			uploadedFile(env, "b", "images/user-1/gal-1/bbb.jpg", "beach.jpg", 200),
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.ConfirmResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.ImageIDs) != 2 {
		t.Fatalf("expected 2 image IDs, got %d", len(resp.ImageIDs))
	}
	if len(resp.Failed) != 0 {
		t.Fatalf("expected no failures, got %+v", resp.Failed)
	}

	images, err := env.Images.ListByGallery(context.Background(), "gal-1")
	if err != nil {
		t.Fatalf("failed to list gallery: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected 2 images recorded, got %d", len(images))
	}
	for i, img := range images {
		if img.Position != i {
			t.Errorf("image %d has position %d", i, img.Position)
		}
	}

	gallery, err := env.Galleries.GetByID(context.Background(), "gal-1")
	if err != nil {
		t.Fatalf("failed to load gallery: %v", err)
	}
	if gallery.CoverImageID == nil {
		t.Fatal("expected cover image to be set")
	}
	if *gallery.CoverImageID != images[0].ID {
		t.Errorf("expected cover %s, got %s", images[0].ID, *gallery.CoverImageID)
	}
}

func TestConfirmFailuresAreIndependent(t *testing.T) {
	env := testutil.NewEnv(t)
	env.SeedOwner(t, "user-1", "gal-1", nil)

	good := uploadedFile(env, "good", "images/user-1/gal-1/good.jpg", "good.jpg", 100)

	badToken := uploadedFile(env, "bad-token", "images/user-1/gal-1/bt.jpg", "bt.jpg", 100)
	badToken.Token = "0:deadbeef"

	// Grant issued for a different path does not authorize this one.
	wrongScope := uploadedFile(env, "wrong-scope", "images/user-1/gal-1/ws.jpg", "ws.jpg", 100)
	wrongScope.Token = env.Signer.SignGrant("images/user-1/gal-1/other.jpg", time.Now().Add(5*time.Minute))

	expired := uploadedFile(env, "expired", "images/user-1/gal-1/exp.jpg", "exp.jpg", 100)
	expired.Token = env.Signer.SignGrant(expired.StoragePath, time.Now().Add(-time.Minute))

	missing := models.ConfirmUpload{
		LocalID:       "missing",
		StoragePath:   "images/user-1/gal-1/missing.jpg",
		Token:         env.Signer.SignGrant("images/user-1/gal-1/missing.jpg", time.Now().Add(5*time.Minute)),
		FileSizeBytes: 100,
	}

	sizeMismatch := uploadedFile(env, "size", "images/user-1/gal-1/size.jpg", "size.jpg", 100)
	sizeMismatch.FileSizeBytes = 999

	rec := confirmRequest(t, env, "user-1", "gal-1", models.ConfirmRequest{
		Uploads: []models.ConfirmUpload{good, badToken, wrongScope, expired, missing, sizeMismatch},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.ConfirmResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.ImageIDs) != 1 {
		t.Fatalf("expected 1 confirmed image, got %d", len(resp.ImageIDs))
	}
	if len(resp.Failed) != 5 {
		t.Fatalf("expected 5 failures, got %d: %+v", len(resp.Failed), resp.Failed)
	}

	failedIDs := make(map[string]string, len(resp.Failed))
	for _, f := range resp.Failed {
		failedIDs[f.LocalID] = f.Error
	}
	for _, id := range []string{"bad-token", "wrong-scope", "expired", "missing", "size"} {
		if _, ok := failedIDs[id]; !ok {
			t.Errorf("expected %s to fail", id)
		}
	}
	if failedIDs["good"] != "" {
		t.Errorf("good upload unexpectedly failed: %s", failedIDs["good"])
	}
}

func TestConfirmIdempotent(t *testing.T) {
	env := testutil.NewEnv(t)
	env.SeedOwner(t, "user-1", "gal-1", nil)

	upload := uploadedFile(env, "a", "images/user-1/gal-1/aaa.jpg", "sunset.jpg", 100)
	body := models.ConfirmRequest{Uploads: []models.ConfirmUpload{upload}}

	first := confirmRequest(t, env, "user-1", "gal-1", body)
	second := confirmRequest(t, env, "user-1", "gal-1", body)

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("expected 200/200, got %d/%d", first.Code, second.Code)
	}

	var firstResp, secondResp models.ConfirmResponse
	if err := json.NewDecoder(first.Body).Decode(&firstResp); err != nil {
		t.Fatalf("failed to decode first response: %v", err)
	}
	if err := json.NewDecoder(second.Body).Decode(&secondResp); err != nil {
		t.Fatalf("failed to decode second response: %v", err)
	}

	if len(firstResp.ImageIDs) != 1 || len(secondResp.ImageIDs) != 1 {
		t.Fatalf("expected one image ID per response")
	}
	if firstResp.ImageIDs[0] != secondResp.ImageIDs[0] {
		t.Errorf("re-confirm returned a different image ID: %s vs %s",
			firstResp.ImageIDs[0], secondResp.ImageIDs[0])
	}

	images, err := env.Images.ListByGallery(context.Background(), "gal-1")
	if err != nil {
		t.Fatalf("failed to list gallery: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("expected 1 image after re-confirm, got %d", len(images))
	}
}

func TestConfirmDoesNotOverwriteCover(t *testing.T) {
	env := testutil.NewEnv(t)
	env.SeedOwner(t, "user-1", "gal-1", nil)

	first := confirmRequest(t, env, "user-1", "gal-1", models.ConfirmRequest{
		Uploads: []models.ConfirmUpload{
			uploadedFile(env, "a", "images/user-1/gal-1/aaa.jpg", "first.jpg", 100),
		},
	})
	if first.Code != http.StatusOK {
		t.Fatalf("first confirm failed: %d", first.Code)
	}

	gallery, _ := env.Galleries.GetByID(context.Background(), "gal-1")
	originalCover := *gallery.CoverImageID

	second := confirmRequest(t, env, "user-1", "gal-1", models.ConfirmRequest{
		Uploads: []models.ConfirmUpload{
			uploadedFile(env, "b", "images/user-1/gal-1/bbb.jpg", "second.jpg", 100),
		},
	})
	if second.Code != http.StatusOK {
		t.Fatalf("second confirm failed: %d", second.Code)
	}

	gallery, _ = env.Galleries.GetByID(context.Background(), "gal-1")
	if *gallery.CoverImageID != originalCover {
		t.Errorf("cover changed from %s to %s", originalCover, *gallery.CoverImageID)
	}
}

func TestConfirmOwnershipRequired(t *testing.T) {
	env := testutil.NewEnv(t)
	env.SeedOwner(t, "user-1", "gal-1", nil)
	env.SeedOwner(t, "user-2", "gal-2", nil)

	rec := confirmRequest(t, env, "user-2", "gal-1", models.ConfirmRequest{
		Uploads: []models.ConfirmUpload{
			uploadedFile(env, "a", "images/user-1/gal-1/aaa.jpg", "a.jpg", 100),
		},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner, got %d", rec.Code)
	}
}

func TestConfirmEmptyBatch(t *testing.T) {
	env := testutil.NewEnv(t)
	env.SeedOwner(t, "user-1", "gal-1", nil)

	rec := confirmRequest(t, env, "user-1", "gal-1", models.ConfirmRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
