// Package uploader implements the client-side upload engine: it moves a
// batch of local photos into a gallery through the grant/confirm API,
// uploading file bytes directly to object storage via signed URLs with
// bounded, adaptively tuned concurrency.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/dangsayz/12img/internal/models"
)

// TaskState tracks a file through the upload lifecycle.
type TaskState int

const (
	TaskQueued TaskState = iota
	TaskSigning
	TaskUploading
	TaskConfirming
	TaskDone
	TaskFailed
)

// String returns the state name for logging.
func (s TaskState) String() string {
	switch s {
	case TaskQueued:
		return "queued"
	case TaskSigning:
		return "signing"
	case TaskUploading:
		return "uploading"
	case TaskConfirming:
		return "confirming"
	case TaskDone:
		return "done"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LocalFile identifies one file to upload.
type LocalFile struct {
	LocalID string
	Path    string
}

// Task is the engine's per-file bookkeeping.
type Task struct {
	LocalID    string
	Path       string
	Filename   string
	State      TaskState
	RetryCount int
	Err        error
	ImageID    string

	data   []byte
	mime   string
	width  *int
	height *int
	grant  models.UploadGrant
}

// Result summarizes one batch.
type Result struct {
	ImageIDs []string
	Failed   []models.ConfirmFailure
	Tasks    []*Task
}

// Config configures the upload engine.
type Config struct {
	ServerURL    string
	SessionToken string

	// MaxConcurrency is the hard ceiling on parallel uploads.
	MaxConcurrency int

	// Tuner adapts concurrency below the ceiling. Nil pins it at the ceiling.
	Tuner Tuner

	Compress CompressPolicy

	// MaxFileSize rejects oversized files before any network call.
	MaxFileSize int64

	// MaxRetries bounds upload attempts per file beyond the first.
	MaxRetries uint64

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Engine uploads batches of files into galleries.
type Engine struct {
	cfg    Config
	client *http.Client
	tuner  Tuner
	logger *slog.Logger
}

// New creates an upload engine.
func New(cfg Config) (*Engine, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 4
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	tuner := cfg.Tuner
	if tuner == nil {
		tuner = fixedTuner(cfg.MaxConcurrency)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{cfg: cfg, client: client, tuner: tuner, logger: logger}, nil
}

// Run uploads files into galleryID: validate, warm up, request grants,
// upload with bounded concurrency, confirm. The returned Result carries
// per-file outcomes; Run returns an error only when the whole batch failed
// before any file could succeed.
func (e *Engine) Run(ctx context.Context, galleryID string, files []LocalFile) (*Result, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to upload")
	}

	tasks, err := e.prepare(files)
	if err != nil {
		return nil, err
	}

	e.warmUp(ctx)

	if err := e.requestGrants(ctx, galleryID, tasks); err != nil {
		return nil, err
	}

	e.uploadAll(ctx, galleryID, tasks)

	return e.confirm(ctx, galleryID, tasks)
}

// prepare loads and validates every file before any network call. One bad
// file fails the whole batch so the caller can fix it and re-run, rather
// than discovering partial uploads later.
func (e *Engine) prepare(files []LocalFile) ([]*Task, error) {
	tasks := make([]*Task, 0, len(files))
	seen := make(map[string]bool, len(files))

	for _, f := range files {
		if f.LocalID == "" || f.Path == "" {
			return nil, fmt.Errorf("file entry missing local ID or path")
		}
		if seen[f.LocalID] {
			return nil, fmt.Errorf("duplicate local ID %q", f.LocalID)
		}
		seen[f.LocalID] = true

		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
		}

		if e.cfg.MaxFileSize > 0 && int64(len(data)) > e.cfg.MaxFileSize {
			return nil, fmt.Errorf("file %s exceeds maximum size (%d > %d bytes)",
				filepath.Base(f.Path), len(data), e.cfg.MaxFileSize)
		}

		mime := sniffMime(data)
		prepared, mime, width, height, err := prepareImage(data, mime, e.cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare %s: %w", filepath.Base(f.Path), err)
		}

		tasks = append(tasks, &Task{
			LocalID:  f.LocalID,
			Path:     f.Path,
			Filename: filepath.Base(f.Path),
			State:    TaskQueued,
			data:     prepared,
			mime:     mime,
			width:    width,
			height:   height,
		})
	}

	return tasks, nil
}

// warmUp issues a HEAD to the warm endpoint so the TLS handshake and
// connection pool are established before the upload burst. Best effort.
func (e *Engine) warmUp(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, e.cfg.ServerURL+"/api/warm", nil)
	if err != nil {
		return
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Debug("warm-up failed", "error", err)
		return
	}
	resp.Body.Close()
}

// requestGrants asks the server for signed upload URLs for every task.
// The grant batch is all-or-nothing: any validation or quota failure means
// zero grants and no uploads.
func (e *Engine) requestGrants(ctx context.Context, galleryID string, tasks []*Task) error {
	req := models.GrantRequest{Files: make([]models.GrantFileRequest, 0, len(tasks))}
	for _, t := range tasks {
		t.State = TaskSigning
		req.Files = append(req.Files, models.GrantFileRequest{
			LocalID:          t.LocalID,
			OriginalFilename: t.Filename,
			MimeType:         t.mime,
			FileSizeBytes:    int64(len(t.data)),
		})
	}

	var resp models.GrantResponse
	if err := e.postJSON(ctx, "/api/galleries/"+galleryID+"/grants", req, &resp); err != nil {
		return fmt.Errorf("grant request failed: %w", err)
	}

	grants := make(map[string]models.UploadGrant, len(resp.Grants))
	for _, g := range resp.Grants {
		grants[g.LocalID] = g
	}

	for _, t := range tasks {
		g, ok := grants[t.LocalID]
		if !ok {
			return fmt.Errorf("server returned no grant for %s", t.LocalID)
		}
		t.grant = g
	}

	return nil
}

// regrant fetches a fresh grant for a single task after its original
// expired. Expired grants are never retried against storage.
func (e *Engine) regrant(ctx context.Context, galleryID string, t *Task) error {
	req := models.GrantRequest{Files: []models.GrantFileRequest{{
		LocalID:          t.LocalID,
		OriginalFilename: t.Filename,
		MimeType:         t.mime,
		FileSizeBytes:    int64(len(t.data)),
	}}}

	var resp models.GrantResponse
	if err := e.postJSON(ctx, "/api/galleries/"+galleryID+"/grants", req, &resp); err != nil {
		return fmt.Errorf("re-grant failed: %w", err)
	}
	if len(resp.Grants) != 1 {
		return fmt.Errorf("re-grant returned %d grants", len(resp.Grants))
	}

	t.grant = resp.Grants[0]
	return nil
}

// uploadAll PUTs every task's bytes to its signed URL with bounded
// concurrency. The errgroup limit is the hard ceiling; the tuner throttles
// below it by holding tasks back until active uploads drop under target.
func (e *Engine) uploadAll(ctx context.Context, galleryID string, tasks []*Task) {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		active int
	)
	g.SetLimit(e.cfg.MaxConcurrency)

	acquire := func() error {
		for {
			target := e.tuner.Target()
			if target < 1 {
				target = 1
			}
			if target > e.cfg.MaxConcurrency {
				target = e.cfg.MaxConcurrency
			}

			mu.Lock()
			if active < target {
				active++
				mu.Unlock()
				return nil
			}
			mu.Unlock()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(25 * time.Millisecond):
			}
		}
	}
	release := func() {
		mu.Lock()
		active--
		mu.Unlock()
	}

	for _, t := range tasks {
		t := t
		g.Go(func() error {
			if err := acquire(); err != nil {
				t.State = TaskFailed
				t.Err = err
				return nil
			}
			defer release()

			t.State = TaskUploading
			if err := e.uploadOne(ctx, galleryID, t); err != nil {
				t.State = TaskFailed
				t.Err = err
				e.logger.Warn("upload failed",
					"local_id", t.LocalID,
					"filename", t.Filename,
					"retries", t.RetryCount,
					"error", err,
				)
			}
			return nil
		})
	}

	g.Wait()
}

// uploadOne PUTs a single file, retrying transient failures with exponential
// backoff. A grant found expired is replaced with a fresh one first; the
// stale URL is never retried.
func (e *Engine) uploadOne(ctx context.Context, galleryID string, t *Task) error {
	backoff := retry.WithMaxRetries(e.cfg.MaxRetries, retry.NewExponential(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if !time.Now().Before(t.grant.ExpiresAt) {
			if err := e.regrant(ctx, galleryID, t); err != nil {
				return err
			}
		}

		start := time.Now()
		err := e.putSignedURL(ctx, t)
		e.tuner.Observe(time.Since(start), err)

		if err != nil {
			t.RetryCount++
			if retryableUpload(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
}

// statusError carries an HTTP status from a failed signed-URL PUT.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("storage returned status %d: %s", e.status, e.body)
}

// retryableUpload reports whether an upload error is worth retrying against
// the same URL. Client errors are not: 403 means the signature no longer
// authorizes the request, and retrying cannot fix it.
func retryableUpload(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500 || se.status == http.StatusTooManyRequests
	}
	// Network-level errors (resets, timeouts) are transient.
	return true
}

// putSignedURL performs the direct-to-storage PUT.
func (e *Engine) putSignedURL(ctx context.Context, t *Task) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.grant.SignedURL, bytes.NewReader(t.data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", t.mime)
	req.ContentLength = int64(len(t.data))

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{status: resp.StatusCode, body: string(body)}
	}

	return nil
}

// confirm records the successfully uploaded files. Confirmations are
// independent per file: failures come back in Result.Failed for re-drive
// and never roll back siblings.
func (e *Engine) confirm(ctx context.Context, galleryID string, tasks []*Task) (*Result, error) {
	result := &Result{Tasks: tasks}

	req := models.ConfirmRequest{}
	var pending []*Task
	for _, t := range tasks {
		if t.State == TaskFailed {
			result.Failed = append(result.Failed, models.ConfirmFailure{
				LocalID: t.LocalID,
				Error:   t.Err.Error(),
			})
			continue
		}
		t.State = TaskConfirming
		pending = append(pending, t)
		req.Uploads = append(req.Uploads, models.ConfirmUpload{
			LocalID:          t.LocalID,
			StoragePath:      t.grant.StoragePath,
			Token:            t.grant.Token,
			OriginalFilename: t.Filename,
			FileSizeBytes:    int64(len(t.data)),
			MimeType:         t.mime,
			Width:            t.width,
			Height:           t.height,
		})
	}

	if len(req.Uploads) == 0 {
		return result, fmt.Errorf("all %d uploads failed", len(tasks))
	}

	var resp models.ConfirmResponse
	if err := e.postJSON(ctx, "/api/galleries/"+galleryID+"/confirm", req, &resp); err != nil {
		for _, t := range pending {
			t.State = TaskFailed
			t.Err = err
		}
		return result, fmt.Errorf("confirm request failed: %w", err)
	}

	failed := make(map[string]string, len(resp.Failed))
	for _, f := range resp.Failed {
		failed[f.LocalID] = f.Error
	}

	for _, t := range pending {
		if msg, ok := failed[t.LocalID]; ok {
			t.State = TaskFailed
			t.Err = fmt.Errorf("%s", msg)
			result.Failed = append(result.Failed, models.ConfirmFailure{LocalID: t.LocalID, Error: msg})
		} else {
			t.State = TaskDone
		}
	}
	result.ImageIDs = resp.ImageIDs

	return result, nil
}

// postJSON sends an authenticated JSON POST and decodes the response,
// mapping API error bodies to errors.
func (e *Engine) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.ServerURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.SessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.SessionToken)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr models.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%s)", apiErr.Error, apiErr.Code)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
