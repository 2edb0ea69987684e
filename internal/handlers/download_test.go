package handlers

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dangsayz/12img/internal/models"
	"github.com/dangsayz/12img/internal/testutil"
)

func downloadRequest(t *testing.T, env *testutil.Env, method, target, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	DownloadHandler(env.Repos, env.ArchiveStore, env.Signer, env.Config)(rec, req)
	return rec
}

func seedCompletedArchive(t *testing.T, env *testutil.Env, jobID, galleryID string) {
	t.Helper()

	path := "archives/" + jobID + ".zip"
	data := make([]byte, 4096)
	env.ArchiveStore.SetObject(path, data, "application/zip")

	now := time.Now()
	env.ArchiveJobs.SetJob(&models.ArchiveJob{
		ID:            jobID,
		GalleryID:     galleryID,
		Status:        models.ArchiveJobCompleted,
		StoragePath:   path,
		FileSizeBytes: int64(len(data)),
		CreatedAt:     now.Add(-time.Hour),
		CompletedAt:   &now,
	})
}

func TestDownloadWithValidToken(t *testing.T) {
	env := testutil.NewEnv(t)
	env.SeedOwner(t, "user-1", "gal-1", nil)
	seedCompletedArchive(t, env, "job-1", "gal-1")

	tok := env.Signer.SignDownload("job-1", time.Now())
	rec := downloadRequest(t, env, http.MethodGet, "/download/job-1?token="+tok, "")

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", rec.Code, rec.Body.String())
	}
	location := rec.Header().Get("Location")
	if !strings.Contains(location, "archives/job-1.zip") {
		t.Errorf("redirect does not target the archive object: %s", location)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("expected no-store on redirect")
	}
}

func TestDownloadTokenRejections(t *testing.T) {
	env := testutil.NewEnv(t)
	env.SeedOwner(t, "user-1", "gal-1", nil)
	seedCompletedArchive(t, env, "job-1", "gal-1")
	seedCompletedArchive(t, env, "job-2", "gal-1")

	valid := env.Signer.SignDownload("job-1", time.Now())
	flip := "0"
	if strings.HasSuffix(valid, "0") {
		flip = "1"
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty token no session", ""},
		{"garbage token", "not-a-token"},
		{"token for different archive", env.Signer.SignDownload("job-2", time.Now())},
		{"expired token", env.Signer.SignDownload("job-1", time.Now().Add(-env.Config.DownloadTokenMaxAge-time.Hour))},
		{"tampered signature", valid[:len(valid)-1] + flip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/download/job-1"
			if tt.token != "" {
				target += "?token=" + tt.token
			}
			rec := downloadRequest(t, env, http.MethodGet, target, "")
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			// Rejections carry no hint about why.
			if strings.Contains(rec.Body.String(), "expired") || strings.Contains(rec.Body.String(), "signature") {
				t.Errorf("rejection leaks detail: %s", rec.Body.String())
			}
		})
	}
}

func TestDownloadSessionPath(t *testing.T) {
	env := testutil.NewEnv(t)
	ownerSession := env.SeedOwner(t, "user-1", "gal-1", nil)
	otherSession := env.SeedOwner(t, "user-2", "gal-2", nil)
	seedCompletedArchive(t, env, "job-1", "gal-1")

	t.Run("owner session downloads", func(t *testing.T) {
		rec := downloadRequest(t, env, http.MethodGet, "/download/job-1", ownerSession)
		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("non-owner session denied", func(t *testing.T) {
		rec := downloadRequest(t, env, http.MethodGet, "/download/job-1", otherSession)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("unknown session denied", func(t *testing.T) {
		rec := downloadRequest(t, env, http.MethodGet, "/download/job-1", "no-such-session")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestDownloadHeadStatuses(t *testing.T) {
	env := testutil.NewEnv(t)
	env.SeedOwner(t, "user-1", "gal-1", nil)
	seedCompletedArchive(t, env, "job-done", "gal-1")
	env.ArchiveJobs.SetJob(&models.ArchiveJob{
		ID:        "job-pending",
		GalleryID: "gal-1",
		Status:    models.ArchiveJobPending,
		CreatedAt: time.Now(),
	})
	env.ArchiveJobs.SetJob(&models.ArchiveJob{
		ID:        "job-failed",
		GalleryID: "gal-1",
		Status:    models.ArchiveJobFailed,
		CreatedAt: time.Now(),
	})

	tok := func(id string) string { return env.Signer.SignDownload(id, time.Now()) }

	t.Run("completed reports size", func(t *testing.T) {
		rec := downloadRequest(t, env, http.MethodHead, "/download/job-done?token="+tok("job-done"), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := rec.Header().Get("Content-Type"); got != "application/zip" {
			t.Errorf("expected application/zip, got %q", got)
		}
		if got := rec.Header().Get("Content-Length"); got != strconv.Itoa(4096) {
			t.Errorf("expected Content-Length 4096, got %q", got)
		}
	})

	t.Run("pending reports 202", func(t *testing.T) {
		rec := downloadRequest(t, env, http.MethodHead, "/download/job-pending?token="+tok("job-pending"), "")
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", rec.Code)
		}
		if got := rec.Header().Get("X-Archive-Status"); got != "pending" {
			t.Errorf("expected X-Archive-Status pending, got %q", got)
		}
	})

	t.Run("failed reports 404", func(t *testing.T) {
		rec := downloadRequest(t, env, http.MethodHead, "/download/job-failed?token="+tok("job-failed"), "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestDownloadPendingGet(t *testing.T) {
	env := testutil.NewEnv(t)
	env.SeedOwner(t, "user-1", "gal-1", nil)
	env.ArchiveJobs.SetJob(&models.ArchiveJob{
		ID:        "job-1",
		GalleryID: "gal-1",
		Status:    models.ArchiveJobProcessing,
		CreatedAt: time.Now(),
	})

	tok := env.Signer.SignDownload("job-1", time.Now())
	rec := downloadRequest(t, env, http.MethodGet, "/download/job-1?token="+tok, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for processing archive, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "processing") {
		t.Errorf("expected status in body: %s", rec.Body.String())
	}
}

func TestDownloadUnknownArchive(t *testing.T) {
	env := testutil.NewEnv(t)
	env.SeedOwner(t, "user-1", "gal-1", nil)

	tok := env.Signer.SignDownload("job-missing", time.Now())
	rec := downloadRequest(t, env, http.MethodGet, "/download/job-missing?token="+tok, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
