package handlers

import (
	"net/http"
	"time"

	"github.com/dangsayz/12img/internal/models"
)

// HealthHandler reports service liveness.
func HealthHandler(startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}
		sendJSON(w, http.StatusOK, models.HealthResponse{
			Status:        "ok",
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
		})
	}
}
