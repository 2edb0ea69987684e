package models

import "time"

// Gallery represents a client photo gallery owned by a photographer.
type Gallery struct {
	ID           string
	UserID       string
	Title        string
	CoverImageID *string // nil until the first image is confirmed
	CreatedAt    time.Time
}

// Image represents one photo stored in a gallery.
// Position is assigned by a monotonic append on insert, so display order
// is stable regardless of upload completion order.
type Image struct {
	ID               string
	GalleryID        string
	Position         int
	StoragePath      string
	OriginalFilename string
	FileSize         int64
	MimeType         string
	Width            *int
	Height           *int
	CreatedAt        time.Time
}

// User represents a gallery owner. Account management lives with the external
// identity provider; only the fields the core needs are carried here.
type User struct {
	ID     string
	Email  string
	PlanID string
}

// Plan describes the upload limits attached to a subscription tier.
// A zero limit means unlimited.
type Plan struct {
	ID                string
	Name              string
	StorageLimitBytes int64
	ImageLimit        int64
}

// StorageUnlimited reports whether the plan has no storage cap.
func (p *Plan) StorageUnlimited() bool {
	return p.StorageLimitBytes <= 0
}

// ImagesUnlimited reports whether the plan has no image count cap.
func (p *Plan) ImagesUnlimited() bool {
	return p.ImageLimit <= 0
}
