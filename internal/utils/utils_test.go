package utils

import (
	"net/http/httptest"
	"testing"
)

func TestExtractIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"192.168.1.5:8080", "192.168.1.5"},
		{"192.168.1.5", "192.168.1.5"},
		{"[::1]:8080", "::1"},
		{"[2001:db8::1]", "2001:db8::1"},
		{"2001:db8::1", "2001:db8::1"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ExtractIP(tt.in); got != tt.want {
			t.Errorf("ExtractIP(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsTrustedProxyIP(t *testing.T) {
	trusted := "127.0.0.1,10.0.0.0/8,192.168.0.0/16"

	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"192.168.50.1", true},
		{"8.8.8.8", false},
		{"not-an-ip", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsTrustedProxyIP(tt.ip, trusted); got != tt.want {
			t.Errorf("IsTrustedProxyIP(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestGetClientIPSpoofProtection(t *testing.T) {
	trusted := "10.0.0.0/8"

	// Direct client: forwarded header must be ignored.
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "8.8.8.8:1234"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")
	if got := GetClientIP(r, trusted); got != "8.8.8.8" {
		t.Errorf("untrusted source must not spoof via XFF, got %q", got)
	}

	// Through a trusted proxy: first XFF entry wins.
	r = httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	if got := GetClientIP(r, trusted); got != "1.2.3.4" {
		t.Errorf("expected first XFF entry, got %q", got)
	}

	// Trusted proxy without headers falls back to the connection source.
	r = httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	if got := GetClientIP(r, trusted); got != "10.0.0.1" {
		t.Errorf("expected remote addr fallback, got %q", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean", "sunset.jpg", "sunset.jpg"},
		{"path traversal", "../../etc/passwd", "passwd"},
		{"header injection", "photo\"\r\n.jpg", "photo___.jpg"},
		{"empty", "", "image"},
		{"dots only", "...", "image"},
		{"unicode kept", "日落.jpg", "日落.jpg"},
		{"spaces trimmed", "  photo.jpg  ", "photo.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
