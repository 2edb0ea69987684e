package handlers

import "net/http"

// WarmHandler answers upload warm-up probes. Clients hit this once before a
// batch so TLS and connection setup cost is paid outside the measured
// per-file upload path.
func WarmHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusNoContent)
	}
}
