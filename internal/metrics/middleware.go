package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware instruments HTTP handlers with request count and latency.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := normalizePath(r.URL.Path)
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
	})
}

// normalizePath replaces dynamic path segments with placeholders so metric
// label cardinality stays bounded.
func normalizePath(path string) string {
	switch path {
	case "/", "/health", "/metrics", "/api/warm", "/api/cron/archive", "/api/cron/cleanup":
		return path
	}

	if strings.HasPrefix(path, "/download/") {
		return "/download/:id"
	}

	if strings.HasPrefix(path, "/api/galleries/") {
		rest := strings.TrimPrefix(path, "/api/galleries/")
		if _, op, ok := strings.Cut(rest, "/"); ok {
			switch op {
			case "grants":
				return "/api/galleries/:id/grants"
			case "confirm":
				return "/api/galleries/:id/confirm"
			case "archive":
				return "/api/galleries/:id/archive"
			}
		}
		return "/api/galleries/:id"
	}

	return "/other"
}
