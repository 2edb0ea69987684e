// Command 12img-upload pushes a directory of photos into a gallery using
// the concurrent upload engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dangsayz/12img/internal/uploader"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".heic": true,
	".gif":  true,
}

func main() {
	var (
		serverURL   = flag.String("server", envOr("TWELVEIMG_SERVER", "http://localhost:8080"), "API server URL")
		session     = flag.String("session", envOr("TWELVEIMG_SESSION", ""), "Session token")
		galleryID   = flag.String("gallery", "", "Target gallery ID")
		dir         = flag.String("dir", ".", "Directory of images to upload")
		concurrency = flag.Int("concurrency", 4, "Maximum parallel uploads")
		noCompress  = flag.Bool("no-compress", false, "Upload originals without downscaling")
		maxDim      = flag.Int("max-dimension", 3840, "Longest edge after downscaling")
		quality     = flag.Int("quality", 85, "JPEG quality after downscaling")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *session == "" {
		fmt.Fprintln(os.Stderr, "error: a session token is required (-session or TWELVEIMG_SESSION)")
		os.Exit(2)
	}
	if *galleryID == "" {
		fmt.Fprintln(os.Stderr, "error: a gallery ID is required (-gallery)")
		os.Exit(2)
	}

	files, err := collectImages(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "no images found in %s\n", *dir)
		os.Exit(1)
	}

	engine, err := uploader.New(uploader.Config{
		ServerURL:      *serverURL,
		SessionToken:   *session,
		MaxConcurrency: *concurrency,
		Tuner:          uploader.NewAIMDTuner(*concurrency, 10*time.Second),
		Compress: uploader.CompressPolicy{
			Enabled:      !*noCompress,
			MaxDimension: *maxDim,
			JPEGQuality:  *quality,
		},
		Logger: logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("uploading %d files to gallery %s\n", len(files), *galleryID)
	start := time.Now()

	result, err := engine.Run(ctx, *galleryID, files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("done: %d uploaded, %d failed in %s\n",
		len(result.ImageIDs), len(result.Failed), time.Since(start).Round(time.Millisecond))

	for _, f := range result.Failed {
		fmt.Fprintf(os.Stderr, "  failed %s: %s\n", f.LocalID, f.Error)
	}
	if len(result.Failed) > 0 {
		os.Exit(1)
	}
}

// collectImages lists image files directly under dir, sorted by name so
// gallery order matches directory order.
func collectImages(dir string) ([]uploader.LocalFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []uploader.LocalFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, uploader.LocalFile{
			LocalID: entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].LocalID < files[j].LocalID })
	return files, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
