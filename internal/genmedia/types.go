// Package genmedia provides an HTTP client for the Google generative media
// REST API. It starts Veo video and Lyria music generations as long-running
// operations, polls them, and downloads produced files with the API key
// credential. All response-shape sniffing lives here; callers only see the
// provider package types.
package genmedia

// predictRequest is the request body for a :predictLongRunning call.
type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

// predictInstance carries the prompt and optional conditioning image.
type predictInstance struct {
	Prompt string        `json:"prompt"`
	Image  *inlineImage  `json:"image,omitempty"`
}

// inlineImage is a base64-encoded reference image.
type inlineImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType,omitempty"`
}

// predictParameters holds generation tuning parameters.
type predictParameters struct {
	DurationSeconds int `json:"durationSeconds,omitempty"`
	SampleCount     int `json:"sampleCount,omitempty"`
}

// operationStatus is the long-running operation resource returned by both
// the start and the poll endpoints.
type operationStatus struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Error    *operationError    `json:"error,omitempty"`
	Response *operationResponse `json:"response,omitempty"`
}

// operationError is the RPC status embedded in a failed operation.
type operationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// operationResponse covers the payload variants the media models return.
// Veo wraps samples in generateVideoResponse; the Lyria predict surface
// returns a flat predictions list. Exactly one variant is populated.
type operationResponse struct {
	GenerateVideoResponse *generateVideoResponse `json:"generateVideoResponse,omitempty"`
	Predictions           []prediction           `json:"predictions,omitempty"`
}

// generateVideoResponse holds the generated video samples.
type generateVideoResponse struct {
	GeneratedSamples []generatedSample `json:"generatedSamples"`
}

// generatedSample references one produced video.
type generatedSample struct {
	Video *mediaRef `json:"video,omitempty"`
}

// prediction references one produced audio clip.
type prediction struct {
	Audio *mediaRef `json:"audio,omitempty"`
	// Some model versions inline the clip at the top level of the prediction.
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
}

// mediaRef is a produced media file, delivered either inline or by URI.
type mediaRef struct {
	URI                string `json:"uri,omitempty"`
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
}
