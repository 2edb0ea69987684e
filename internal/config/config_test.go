package config

import (
	"testing"
	"time"
)

// TestLoadDefaults verifies default configuration values
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}

	if cfg.MaxFileSize != 52428800 {
		t.Errorf("expected default max file size 52428800, got %d", cfg.MaxFileSize)
	}

	if cfg.GrantTTL != 5*time.Minute {
		t.Errorf("expected default grant TTL 5m, got %s", cfg.GrantTTL)
	}

	if cfg.DownloadTokenMaxAge != 168*time.Hour {
		t.Errorf("expected default download token max age 168h, got %s", cfg.DownloadTokenMaxAge)
	}

	if cfg.ArchiveMaxAttempts != 3 {
		t.Errorf("expected default max attempts 3, got %d", cfg.ArchiveMaxAttempts)
	}

	if cfg.CronIterations != 5 {
		t.Errorf("expected default cron iterations 5, got %d", cfg.CronIterations)
	}

	if cfg.CronSecret != "" {
		t.Errorf("expected empty cron secret by default, got %q", cfg.CronSecret)
	}
}

// TestLoadEnvOverrides verifies environment variables override defaults
func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_FILE_SIZE", "1048576")
	t.Setenv("GRANT_TTL_MINUTES", "10")
	t.Setenv("ARCHIVE_MAX_ATTEMPTS", "5")
	t.Setenv("ALLOWED_MIME_TYPES", "image/jpeg, IMAGE/PNG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}

	if cfg.MaxFileSize != 1048576 {
		t.Errorf("expected max file size 1048576, got %d", cfg.MaxFileSize)
	}

	if cfg.GrantTTL != 10*time.Minute {
		t.Errorf("expected grant TTL 10m, got %s", cfg.GrantTTL)
	}

	if cfg.ArchiveMaxAttempts != 5 {
		t.Errorf("expected max attempts 5, got %d", cfg.ArchiveMaxAttempts)
	}

	if len(cfg.AllowedMimeTypes) != 2 {
		t.Fatalf("expected 2 allowed mime types, got %d", len(cfg.AllowedMimeTypes))
	}

	// List entries are normalized to lowercase
	if cfg.AllowedMimeTypes[1] != "image/png" {
		t.Errorf("expected normalized image/png, got %s", cfg.AllowedMimeTypes[1])
	}
}

// TestValidateRejectsBadValues verifies configuration validation
func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "empty port",
			mutate: func(c *Config) { c.Port = "" },
		},
		{
			name:   "empty image bucket",
			mutate: func(c *Config) { c.ImageBucket = "" },
		},
		{
			name:   "empty archive bucket",
			mutate: func(c *Config) { c.ArchiveBucket = "" },
		},
		{
			name:   "negative max file size",
			mutate: func(c *Config) { c.MaxFileSize = -1 },
		},
		{
			name:   "zero max attempts",
			mutate: func(c *Config) { c.ArchiveMaxAttempts = 0 },
		},
		{
			name:   "zero fetch workers",
			mutate: func(c *Config) { c.ArchiveFetchWorkers = 0 },
		},
		{
			name:   "lease shorter than build budget",
			mutate: func(c *Config) { c.ArchiveLeaseTTL = 5 * time.Minute },
		},
		{
			name:   "no allowed mime types",
			mutate: func(c *Config) { c.AllowedMimeTypes = nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}

			tt.mutate(cfg)

			if err := cfg.validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

// TestMimeTypeAllowed tests the MIME allow-list check
func TestMimeTypeAllowed(t *testing.T) {
	cfg := &Config{AllowedMimeTypes: []string{"image/jpeg", "image/png"}}

	tests := []struct {
		mimeType string
		want     bool
	}{
		{"image/jpeg", true},
		{"IMAGE/JPEG", true},
		{" image/png ", true},
		{"image/gif", false},
		{"application/octet-stream", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := cfg.MimeTypeAllowed(tt.mimeType); got != tt.want {
			t.Errorf("MimeTypeAllowed(%q) = %v, want %v", tt.mimeType, got, tt.want)
		}
	}
}
