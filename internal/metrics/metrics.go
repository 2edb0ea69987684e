// Package metrics exposes Prometheus instrumentation for the API server and
// the archive worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter metrics (monotonically increasing)
var (
	// GrantsIssuedTotal counts upload grants by outcome (issued, quota_denied, rejected)
	GrantsIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twelveimg_grants_total",
			Help: "Total number of upload grant requests by outcome",
		},
		[]string{"outcome"},
	)

	// ConfirmsTotal counts upload confirmations by status (success, failure)
	ConfirmsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twelveimg_confirms_total",
			Help: "Total number of upload confirmations",
		},
		[]string{"status"},
	)

	// ArchiveJobsTotal counts archive job outcomes (completed, released, build_failed)
	ArchiveJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twelveimg_archive_jobs_total",
			Help: "Total number of archive job outcomes",
		},
		[]string{"outcome"},
	)

	// DownloadsTotal counts archive downloads by auth path and status
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twelveimg_downloads_total",
			Help: "Total number of archive download requests",
		},
		[]string{"auth", "status"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, path, and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "twelveimg_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

// Histogram metrics (distributions)
var (
	// HTTPRequestDuration tracks HTTP request latency by method and path
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "twelveimg_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	// ArchiveBuildDuration tracks wall-clock time per archive build
	ArchiveBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "twelveimg_archive_build_duration_seconds",
			Help:    "Archive build time in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
	)

	// ArchiveSizeBytes tracks distribution of built archive sizes
	ArchiveSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "twelveimg_archive_size_bytes",
			Help: "Distribution of built archive sizes in bytes",
			Buckets: []float64{
				1048576,     // 1 MB
				10485760,    // 10 MB
				104857600,   // 100 MB
				524288000,   // 500 MB
				1073741824,  // 1 GB
				5368709120,  // 5 GB
				10737418240, // 10 GB
			},
		},
	)
)
