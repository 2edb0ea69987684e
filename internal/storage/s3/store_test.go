package s3

import (
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	s := &Store{bucket: "test"}

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid nested key", "images/user-1/gallery-2/photo.jpg", false},
		{"valid archive key", "archives/job-123.zip", false},
		{"empty key", "", true},
		{"null byte", "images/a\x00b.jpg", true},
		{"url encoded", "images/%2e%2e/secret.jpg", true},
		{"parent traversal", "images/../secrets/key.pem", true},
		{"bare dotdot", "..", true},
		{"trailing traversal", "images/..", true},
		{"dot only", ".", true},
		{"root only", "/", true},
		{"long valid key", "images/" + strings.Repeat("a", 200) + ".jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.validateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}
