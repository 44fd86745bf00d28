// Package server provides the HTTP server for the ad generation API.
// It includes handlers, middleware, routes, and DTOs separated from the
// domain types.
package server

// CreateAdRequest is the HTTP request body for launching an ad-generation job.
type CreateAdRequest struct {
	// VideoPrompt describes the ad video to generate.
	VideoPrompt string `json:"video_prompt" validate:"required"`
	// MusicPrompt optionally describes the background music.
	MusicPrompt string `json:"music_prompt"`
	// ImageBase64 is an optional base64-encoded reference image.
	ImageBase64 string `json:"image_base64" validate:"omitempty,base64"`
	// ImageMIMEType describes the reference image, e.g. "image/png".
	ImageMIMEType string `json:"image_mime_type"`
}

// CreateAdResponse is the HTTP response after launching a job.
type CreateAdResponse struct {
	// JobID is the key for polling and downloading the job.
	JobID string `json:"job_id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// AdStatusResponse is the HTTP response for polling a job.
type AdStatusResponse struct {
	// JobID is the job key.
	JobID string `json:"job_id"`
	// Status is one of processing, merging, complete, failed.
	Status string `json:"status"`
	// Error contains the failure message when Status is failed.
	Error string `json:"error,omitempty"`
	// VideoURL is the published location of the final ad, when publishing
	// is configured and the job is complete.
	VideoURL string `json:"video_url,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
