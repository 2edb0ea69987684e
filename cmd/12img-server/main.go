package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dangsayz/12img/internal/archive"
	"github.com/dangsayz/12img/internal/config"
	"github.com/dangsayz/12img/internal/handlers"
	"github.com/dangsayz/12img/internal/metrics"
	"github.com/dangsayz/12img/internal/middleware"
	"github.com/dangsayz/12img/internal/repository/postgres"
	"github.com/dangsayz/12img/internal/storage/s3"
	"github.com/dangsayz/12img/internal/token"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting 12img",
		"port", cfg.Port,
		"max_file_size", cfg.MaxFileSize,
		"max_files_per_batch", cfg.MaxFilesPerBatch,
		"image_bucket", cfg.ImageBucket,
		"archive_bucket", cfg.ArchiveBucket,
		"cron_enabled", cfg.CronSecret != "",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database-backed repositories
	repos, cleanup, err := postgres.NewRepositories(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	slog.Info("database initialized")

	// Initialize object stores. Images and archives live in separate
	// buckets so retention policies can differ.
	storeCfg := s3.Config{
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretKey,
		PathStyle:       cfg.S3PathStyle,
	}

	storeCfg.Bucket = cfg.ImageBucket
	imageStore, err := s3.New(ctx, storeCfg)
	if err != nil {
		slog.Error("failed to initialize image store", "bucket", cfg.ImageBucket, "error", err)
		os.Exit(1)
	}

	storeCfg.Bucket = cfg.ArchiveBucket
	archiveStore, err := s3.New(ctx, storeCfg)
	if err != nil {
		slog.Error("failed to initialize archive store", "bucket", cfg.ArchiveBucket, "error", err)
		os.Exit(1)
	}

	slog.Info("object stores ready", "image_bucket", cfg.ImageBucket, "archive_bucket", cfg.ArchiveBucket)

	signer, err := token.NewSigner(cfg.DownloadTokenSecret)
	if err != nil {
		slog.Error("failed to initialize token signer", "error", err)
		os.Exit(1)
	}

	worker := archive.NewWorker(repos.ArchiveJobs, repos.Images, imageStore, archiveStore, archive.Config{
		LeaseTTL:         cfg.ArchiveLeaseTTL,
		BuildTimeout:     cfg.ArchiveBuildTimeout,
		MaxAttempts:      cfg.ArchiveMaxAttempts,
		FetchConcurrency: cfg.ArchiveFetchWorkers,
	}, logger)

	slog.Info("archive worker ready", "owner_id", worker.OwnerID())

	// Rate limit counters are shared across instances when Redis is
	// configured, per-process otherwise.
	var counters middleware.CounterStore
	if cfg.RedisAddr != "" {
		redisStore, err := middleware.NewRedisCounterStore(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			slog.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		counters = redisStore
		slog.Info("rate limiting backed by redis", "addr", cfg.RedisAddr)
	} else {
		counters = middleware.NewMemoryCounterStore()
		slog.Info("rate limiting backed by process-local counters")
	}

	// Record start time for health checks
	startTime := time.Now()

	sessionAuth := middleware.SessionAuth(repos.Sessions)
	grantLimit := middleware.RateLimit(counters, "grants", cfg.RateLimitGrants, time.Hour, cfg.TrustedProxies)
	downloadLimit := middleware.RateLimit(counters, "downloads", cfg.RateLimitDownloads, time.Hour, cfg.TrustedProxies)

	// Setup HTTP router
	mux := http.NewServeMux()

	grantsHandler := handlers.GrantsHandler(repos, imageStore, signer, cfg)
	confirmHandler := handlers.ConfirmHandler(repos, imageStore, signer, cfg)
	enqueueHandler := handlers.EnqueueArchiveHandler(repos)

	// Gallery operations: /api/galleries/{id}/{grants|confirm|archive}
	mux.HandleFunc("/api/galleries/", func(w http.ResponseWriter, r *http.Request) {
		var inner http.Handler
		switch {
		case strings.HasSuffix(r.URL.Path, "/grants"):
			inner = grantLimit(http.HandlerFunc(grantsHandler))
		case strings.HasSuffix(r.URL.Path, "/confirm"):
			inner = http.HandlerFunc(confirmHandler)
		case strings.HasSuffix(r.URL.Path, "/archive"):
			inner = http.HandlerFunc(enqueueHandler)
		default:
			http.NotFound(w, r)
			return
		}
		sessionAuth(inner).ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/warm", handlers.WarmHandler())
	mux.HandleFunc("/api/cron/archive", handlers.CronArchiveHandler(worker, cfg))
	mux.HandleFunc("/api/cron/cleanup", handlers.CronCleanupHandler(worker, cfg))

	downloadHandler := handlers.DownloadHandler(repos, archiveStore, signer, cfg)
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		downloadLimit(http.HandlerFunc(downloadHandler)).ServeHTTP(w, r)
	})

	mux.HandleFunc("/health", handlers.HealthHandler(startTime))
	mux.Handle("/metrics", promhttp.Handler())

	// Wrap everything with recovery, logging, security headers, and metrics
	handler := middleware.Recovery(
		middleware.Logging(cfg.TrustedProxies)(
			middleware.SecurityHeaders(
				metrics.Middleware(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start HTTP server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig)

		cancel()

		// Give outstanding requests 10 seconds to complete
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				slog.Error("server close failed", "error", err)
			}
			os.Exit(1)
		}

		slog.Info("server shutdown complete")
	}
}
