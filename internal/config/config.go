// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	DatabaseURL string // PostgreSQL connection string
	PublicURL   string // Optional: override auto-detected URL for reverse proxy setups

	// Object storage
	S3Region        string
	S3Endpoint      string // Custom endpoint for MinIO or other S3-compatible services
	S3AccessKeyID   string
	S3SecretKey     string
	S3PathStyle     bool   // Path-style addressing (required for MinIO)
	ImageBucket     string // Bucket for gallery images
	ArchiveBucket   string // Bucket for finished ZIP archives

	// Upload grants
	GrantTTL         time.Duration // Validity window for signed upload URLs
	MaxFileSize      int64         // Per-file upload ceiling in bytes
	MaxFilesPerBatch int           // Files per grant request
	AllowedMimeTypes []string      // MIME types accepted for upload

	// Download tokens
	DownloadTokenSecret string
	DownloadTokenMaxAge time.Duration

	// Cron trigger
	CronSecret string // Empty means every cron request is rejected

	// Archive worker
	ArchiveLeaseTTL      time.Duration // Lease held per job; must exceed the build budget
	ArchiveBuildTimeout  time.Duration // Wall-clock budget for one ZIP build
	ArchiveMaxAttempts   int           // Attempts before a job is permanently failed
	ArchiveFetchWorkers  int           // Concurrent image fetches while zipping
	ArchiveRetention     time.Duration // Completed archives older than this are purged
	CronIterations       int           // RunOnce calls per cron invocation

	// Rate limiting
	RateLimitGrants    int    // Grant requests per hour per IP
	RateLimitDownloads int    // Download requests per hour per IP
	RedisAddr          string // Optional: shared counter store for multi-instance deployments
	RedisPassword      string

	// TrustedProxies are sources whose forwarding headers are honored.
	TrustedProxies string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	defaultMimes := "image/jpeg,image/png,image/webp,image/heic"

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		PublicURL:   getEnv("PUBLIC_URL", ""),

		S3Region:      getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:    getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID: getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:   getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3PathStyle:   getEnvBool("S3_PATH_STYLE", false),
		ImageBucket:   getEnv("IMAGE_BUCKET", "12img-images"),
		ArchiveBucket: getEnv("ARCHIVE_BUCKET", "12img-archives"),

		GrantTTL:         getEnvDuration("GRANT_TTL_MINUTES", 5*time.Minute),
		MaxFileSize:      getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB default
		MaxFilesPerBatch: getEnvInt("MAX_FILES_PER_BATCH", 100),
		AllowedMimeTypes: getEnvList("ALLOWED_MIME_TYPES", defaultMimes),

		DownloadTokenSecret: getEnv("DOWNLOAD_TOKEN_SECRET", ""),
		DownloadTokenMaxAge: getEnvDuration("DOWNLOAD_TOKEN_MAX_AGE_HOURS", 168*time.Hour),

		CronSecret: getEnv("CRON_SECRET", ""),

		ArchiveLeaseTTL:     getEnvDuration("ARCHIVE_LEASE_TTL_MINUTES", 35*time.Minute),
		ArchiveBuildTimeout: getEnvDuration("ARCHIVE_BUILD_TIMEOUT_MINUTES", 30*time.Minute),
		ArchiveMaxAttempts:  getEnvInt("ARCHIVE_MAX_ATTEMPTS", 3),
		ArchiveFetchWorkers: getEnvInt("ARCHIVE_FETCH_WORKERS", 5),
		ArchiveRetention:    getEnvDuration("ARCHIVE_RETENTION_HOURS", 2*365*24*time.Hour),
		CronIterations:      getEnvInt("CRON_ITERATIONS", 5),

		RateLimitGrants:    getEnvInt("RATE_LIMIT_GRANTS", 60),
		RateLimitDownloads: getEnvInt("RATE_LIMIT_DOWNLOADS", 100),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),

		TrustedProxies: getEnv("TRUSTED_PROXIES", "127.0.0.1,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate ensures configuration values are sensible.
func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	if c.ImageBucket == "" {
		return fmt.Errorf("IMAGE_BUCKET cannot be empty")
	}

	if c.ArchiveBucket == "" {
		return fmt.Errorf("ARCHIVE_BUCKET cannot be empty")
	}

	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", c.MaxFileSize)
	}

	if c.GrantTTL <= 0 {
		return fmt.Errorf("GRANT_TTL_MINUTES must be positive")
	}

	if c.MaxFilesPerBatch <= 0 {
		return fmt.Errorf("MAX_FILES_PER_BATCH must be positive, got %d", c.MaxFilesPerBatch)
	}

	if c.DownloadTokenMaxAge <= 0 {
		return fmt.Errorf("DOWNLOAD_TOKEN_MAX_AGE_HOURS must be positive")
	}

	if c.ArchiveMaxAttempts <= 0 {
		return fmt.Errorf("ARCHIVE_MAX_ATTEMPTS must be positive, got %d", c.ArchiveMaxAttempts)
	}

	if c.ArchiveFetchWorkers <= 0 {
		return fmt.Errorf("ARCHIVE_FETCH_WORKERS must be positive, got %d", c.ArchiveFetchWorkers)
	}

	if c.ArchiveBuildTimeout <= 0 {
		return fmt.Errorf("ARCHIVE_BUILD_TIMEOUT_MINUTES must be positive")
	}

	// A lease shorter than the build budget would let a healthy worker lose its job mid-build.
	if c.ArchiveLeaseTTL < c.ArchiveBuildTimeout {
		return fmt.Errorf("ARCHIVE_LEASE_TTL_MINUTES (%s) cannot be shorter than ARCHIVE_BUILD_TIMEOUT_MINUTES (%s)",
			c.ArchiveLeaseTTL, c.ArchiveBuildTimeout)
	}

	if c.CronIterations <= 0 {
		return fmt.Errorf("CRON_ITERATIONS must be positive, got %d", c.CronIterations)
	}

	if c.RateLimitGrants <= 0 {
		return fmt.Errorf("RATE_LIMIT_GRANTS must be positive, got %d", c.RateLimitGrants)
	}

	if c.RateLimitDownloads <= 0 {
		return fmt.Errorf("RATE_LIMIT_DOWNLOADS must be positive, got %d", c.RateLimitDownloads)
	}

	if len(c.AllowedMimeTypes) == 0 {
		return fmt.Errorf("ALLOWED_MIME_TYPES cannot be empty")
	}

	return nil
}

// MimeTypeAllowed reports whether the given MIME type is accepted for upload.
func (c *Config) MimeTypeAllowed(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	for _, allowed := range c.AllowedMimeTypes {
		if mimeType == allowed {
			return true
		}
	}
	return false
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvInt64 retrieves an int64 environment variable or returns a default value
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration from an environment variable expressed in the
// unit named by the key suffix (MINUTES or HOURS), or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil || n <= 0 {
		return defaultValue
	}
	switch {
	case strings.HasSuffix(key, "_MINUTES"):
		return time.Duration(n * float64(time.Minute))
	case strings.HasSuffix(key, "_HOURS"):
		return time.Duration(n * float64(time.Hour))
	default:
		return time.Duration(n * float64(time.Second))
	}
}

// getEnvList retrieves a comma-separated list from an environment variable
func getEnvList(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	if value == "" {
		return []string{}
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(part))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
