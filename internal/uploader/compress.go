package uploader

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// CompressPolicy controls optional client-side downscaling before upload.
type CompressPolicy struct {
	// Enabled turns downscaling on. When off, files upload as-is.
	Enabled bool

	// MaxDimension is the longest allowed edge in pixels. Images whose
	// width and height both fit are left untouched.
	MaxDimension int

	// JPEGQuality for re-encoded images (1-100).
	JPEGQuality int
}

// DefaultCompressPolicy matches typical gallery delivery sizes.
func DefaultCompressPolicy() CompressPolicy {
	return CompressPolicy{
		Enabled:      true,
		MaxDimension: 3840,
		JPEGQuality:  85,
	}
}

// sniffMime detects the real content type from the file bytes. The filename
// extension is untrusted.
func sniffMime(data []byte) string {
	return mimetype.Detect(data).String()
}

// prepareImage applies the compress policy to raw image bytes. It returns
// the bytes to upload, the effective MIME type, and the pixel dimensions
// when they could be decoded. Non-image payloads and undecodable images pass
// through unchanged.
func prepareImage(data []byte, mime string, policy CompressPolicy) ([]byte, string, *int, *int, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Not decodable (e.g. HEIC): upload the original bytes.
		return data, mime, nil, nil, nil
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if !policy.Enabled || (w <= policy.MaxDimension && h <= policy.MaxDimension) {
		return data, mime, &w, &h, nil
	}

	resized := imaging.Fit(img, policy.MaxDimension, policy.MaxDimension, imaging.Lanczos)
	rb := resized.Bounds()
	rw, rh := rb.Dx(), rb.Dy()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: policy.JPEGQuality}); err != nil {
		return nil, "", nil, nil, fmt.Errorf("failed to re-encode image: %w", err)
	}

	return buf.Bytes(), "image/jpeg", &rw, &rh, nil
}
