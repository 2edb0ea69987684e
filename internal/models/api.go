package models

import "time"

// GrantFileRequest describes one file in an upload grant batch.
type GrantFileRequest struct {
	LocalID          string `json:"local_id"`
	OriginalFilename string `json:"original_filename"`
	MimeType         string `json:"mime_type"`
	FileSizeBytes    int64  `json:"file_size_bytes"`
}

// GrantRequest is the body of POST /api/galleries/{id}/grants.
type GrantRequest struct {
	Files []GrantFileRequest `json:"files"`
}

// UploadGrant is one signed, single-use upload authorization.
type UploadGrant struct {
	LocalID     string    `json:"local_id"`
	StoragePath string    `json:"storage_path"`
	SignedURL   string    `json:"signed_url"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// GrantResponse is the JSON response for a successful grant batch.
type GrantResponse struct {
	Grants []UploadGrant `json:"grants"`
}

// ConfirmUpload describes one successfully uploaded file to be recorded.
type ConfirmUpload struct {
	LocalID          string `json:"local_id"`
	StoragePath      string `json:"storage_path"`
	Token            string `json:"token"`
	OriginalFilename string `json:"original_filename"`
	FileSizeBytes    int64  `json:"file_size_bytes"`
	MimeType         string `json:"mime_type"`
	Width            *int   `json:"width,omitempty"`
	Height           *int   `json:"height,omitempty"`
}

// ConfirmRequest is the body of POST /api/galleries/{id}/confirm.
type ConfirmRequest struct {
	Uploads []ConfirmUpload `json:"uploads"`
}

// ConfirmFailure reports one upload whose confirmation failed.
// Confirmations are independent: one failure never rolls back the others.
type ConfirmFailure struct {
	LocalID string `json:"local_id"`
	Error   string `json:"error"`
}

// ConfirmResponse is the JSON response for a confirm batch.
type ConfirmResponse struct {
	ImageIDs []string         `json:"image_ids"`
	Failed   []ConfirmFailure `json:"failed,omitempty"`
}

// CronResponse summarizes one cron trigger invocation.
type CronResponse struct {
	Processed int      `json:"processed"`
	Released  int      `json:"released"`
	Errors    []string `json:"errors,omitempty"`
}

// ErrorResponse is the JSON error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the JSON response for the health check endpoint
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
