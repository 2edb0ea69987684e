package handlers

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dangsayz/12img/internal/archive"
	"github.com/dangsayz/12img/internal/config"
	"github.com/dangsayz/12img/internal/metrics"
	"github.com/dangsayz/12img/internal/models"
)

// cronAuthorized checks the shared secret on cron trigger requests. An empty
// configured secret rejects everything rather than opening the endpoint.
func cronAuthorized(r *http.Request, secret string) bool {
	if secret == "" {
		return false
	}

	presented := r.URL.Query().Get("secret")
	if presented == "" {
		if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			presented = bearer
		}
	}
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) == 1
}

// CronArchiveHandler drains the archive job queue. Each POST runs a bounded
// number of worker passes so a single external trigger makes progress on
// several jobs without running unbounded. GET is a liveness probe for cron
// monitors.
func CronArchiveHandler(worker *archive.Worker, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !cronAuthorized(r, cfg.CronSecret) {
			sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		switch r.Method {
		case http.MethodGet:
			sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		case http.MethodPost:
		default:
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		start := time.Now()
		var resp models.CronResponse

		for i := 0; i < cfg.CronIterations; i++ {
			result, err := worker.RunOnce(r.Context())
			resp.Released += result.Released
			if err != nil {
				// One bad pass must not starve the rest of the queue.
				slog.Error("archive worker pass failed", "iteration", i, "error", err)
				resp.Errors = append(resp.Errors, fmt.Sprintf("iteration %d: %v", i, err))
				metrics.ArchiveJobsTotal.WithLabelValues("error").Inc()
				continue
			}
			if !result.Processed {
				break
			}
			resp.Processed++
			metrics.ArchiveJobsTotal.WithLabelValues("completed").Inc()
		}

		slog.Info("cron archive run finished",
			"processed", resp.Processed,
			"released", resp.Released,
			"errors", len(resp.Errors),
			"duration_ms", time.Since(start).Milliseconds(),
		)

		sendJSON(w, http.StatusOK, resp)
	}
}

// CronCleanupHandler purges completed archives past the retention window,
// removing each ZIP object before its job row.
func CronCleanupHandler(worker *archive.Worker, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !cronAuthorized(r, cfg.CronSecret) {
			sendError(w, "Unauthorized", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		deleted, err := worker.CleanupExpiredArchives(r.Context(), cfg.ArchiveRetention)
		if err != nil {
			slog.Error("archive cleanup failed", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		slog.Info("archive cleanup finished", "deleted", deleted)
		sendJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
	}
}
