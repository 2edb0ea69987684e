package utils

import (
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeFilename strips path components and dangerous characters from a
// client-supplied filename before it is stored or used in a ZIP entry.
// Prevents header injection, path traversal, and control characters in logs.
func SanitizeFilename(filename string) string {
	if filename == "" {
		return "image"
	}

	filename = filepath.Base(filename)

	var sanitized strings.Builder
	sanitized.Grow(len(filename))
	for _, r := range filename {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' || r == '.' {
			sanitized.WriteRune(r)
		} else {
			sanitized.WriteRune('_')
		}
	}

	result := strings.Trim(sanitized.String(), " .")
	if result == "" || strings.Trim(result, ".") == "" {
		return "image"
	}

	if len(result) > 255 {
		ext := filepath.Ext(result)
		if len(ext) > 0 && len(ext) < 20 {
			base := result[:len(result)-len(ext)]
			if len(base) > 255-len(ext) {
				base = base[:255-len(ext)]
			}
			result = base + ext
		} else {
			result = result[:255]
		}
	}

	return result
}
