// Package handlers implements the HTTP API: grant issuance, upload
// confirmation, archive enqueue/download, cron triggers, and health.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dangsayz/12img/internal/models"
)

// maxRequestBody bounds JSON request bodies. Grant and confirm batches are
// metadata only; file bytes never pass through the API.
const maxRequestBody = 1 << 20

// sendError writes a JSON error response.
func sendError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// sendJSON writes a JSON response with the given status.
func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// galleryPath parses "/api/galleries/{id}/{op}" into its segments.
func galleryPath(path string) (galleryID, op string, ok bool) {
	rest, found := strings.CutPrefix(path, "/api/galleries/")
	if !found || rest == "" {
		return "", "", false
	}

	galleryID, op, found = strings.Cut(rest, "/")
	if !found || galleryID == "" || op == "" || strings.Contains(op, "/") {
		return "", "", false
	}

	return galleryID, op, true
}
