package metrics

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/api/warm", "/api/warm"},
		{"/api/cron/archive", "/api/cron/archive"},
		{"/api/galleries/123e4567/grants", "/api/galleries/:id/grants"},
		{"/api/galleries/123e4567/confirm", "/api/galleries/:id/confirm"},
		{"/api/galleries/123e4567/archive", "/api/galleries/:id/archive"},
		{"/api/galleries/123e4567", "/api/galleries/:id"},
		{"/download/abc-def", "/download/:id"},
		{"/unknown/endpoint", "/other"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
