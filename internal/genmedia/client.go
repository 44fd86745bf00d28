package genmedia

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pitchkit/adgen-api/internal/provider"
)

// Static errors for genmedia client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is configured.
	ErrAPIKeyNotSet = errors.New("genmedia: API key is not set")
	// ErrNoOperationName is returned when a start call returns no operation name.
	ErrNoOperationName = errors.New("genmedia: start returned no operation name")
	// ErrNoArtifact is returned when a completed operation carries no media reference.
	ErrNoArtifact = errors.New("genmedia: completed operation has no artifact")
	// ErrServerError is returned when the API responds with a 5xx status code.
	ErrServerError = errors.New("genmedia: server error")
	// ErrRateLimited is returned when the API responds with a 429 status code.
	ErrRateLimited = errors.New("genmedia: rate limited")
	// ErrRequestFailed is returned for other non-2xx responses.
	ErrRequestFailed = errors.New("genmedia: request failed")
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client is the HTTP implementation of provider.Client for the Google
// generative media API.
type Client struct {
	apiKey      string
	baseURL     string
	videoModel  string
	musicModel  string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// Compile-time check that Client implements provider.Client.
var _ provider.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key used for authentication.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration between retries.
func WithBaseBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.baseBackoff = d
	}
}

// NewClient creates a new generative media client. The API key can be set via
// WithAPIKey; if absent it is read from the GEMINI_API_KEY environment
// variable. videoModel and musicModel name the models used for the two
// generation kinds.
func NewClient(videoModel, musicModel string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:     defaultBaseURL,
		videoModel:  videoModel,
		musicModel:  musicModel,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// StartVideo begins a Veo video generation and returns its operation handle.
func (c *Client) StartVideo(ctx context.Context, req provider.VideoRequest) (provider.OperationHandle, error) {
	instance := predictInstance{Prompt: req.Prompt}
	if len(req.ImageBytes) > 0 {
		instance.Image = &inlineImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.ImageBytes),
			MimeType:           req.ImageMIMEType,
		}
	}

	return c.startOperation(ctx, c.videoModel, predictRequest{
		Instances:  []predictInstance{instance},
		Parameters: predictParameters{DurationSeconds: req.DurationSeconds},
	})
}

// StartMusic begins a Lyria music generation and returns its operation handle.
func (c *Client) StartMusic(ctx context.Context, req provider.MusicRequest) (provider.OperationHandle, error) {
	return c.startOperation(ctx, c.musicModel, predictRequest{
		Instances:  []predictInstance{{Prompt: req.Prompt}},
		Parameters: predictParameters{DurationSeconds: req.DurationSeconds, SampleCount: 1},
	})
}

// startOperation posts a :predictLongRunning call and maps the returned
// operation resource to a handle.
func (c *Client) startOperation(ctx context.Context, model string, body predictRequest) (provider.OperationHandle, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return provider.OperationHandle{}, fmt.Errorf("genmedia: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:predictLongRunning", c.baseURL, model)

	var op operationStatus
	if err := c.doRequestWithRetry(ctx, http.MethodPost, url, payload, &op); err != nil {
		return provider.OperationHandle{}, err
	}

	if op.Name == "" {
		return provider.OperationHandle{}, ErrNoOperationName
	}

	return provider.HandleFromName(op.Name), nil
}

// PollOperation checks the status of a long-running operation.
func (c *Client) PollOperation(ctx context.Context, op provider.OperationHandle) (provider.PollResult, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, op.Name)

	var status operationStatus
	if err := c.doRequestWithRetry(ctx, http.MethodGet, url, nil, &status); err != nil {
		return provider.PollResult{}, err
	}

	result := provider.PollResult{Done: status.Done}
	if !status.Done {
		return result, nil
	}

	if status.Error != nil {
		result.Err = status.Error.Message
		if result.Err == "" {
			result.Err = fmt.Sprintf("operation failed with code %d", status.Error.Code)
		}
		return result, nil
	}

	artifact, err := extractArtifact(status.Response)
	if err != nil {
		return provider.PollResult{}, err
	}
	result.Artifact = artifact
	return result, nil
}

// extractArtifact maps the polymorphic operation response shapes to a single
// tagged Artifact. Veo returns generatedSamples with a video ref; Lyria
// returns predictions with an audio ref or a top-level inline payload.
func extractArtifact(resp *operationResponse) (provider.Artifact, error) {
	if resp == nil {
		return provider.Artifact{}, ErrNoArtifact
	}

	var ref *mediaRef
	switch {
	case resp.GenerateVideoResponse != nil && len(resp.GenerateVideoResponse.GeneratedSamples) > 0:
		ref = resp.GenerateVideoResponse.GeneratedSamples[0].Video
	case len(resp.Predictions) > 0:
		p := resp.Predictions[0]
		if p.Audio != nil {
			ref = p.Audio
		} else if p.BytesBase64Encoded != "" {
			ref = &mediaRef{BytesBase64Encoded: p.BytesBase64Encoded, MimeType: p.MimeType}
		}
	}

	if ref == nil {
		return provider.Artifact{}, ErrNoArtifact
	}

	if ref.BytesBase64Encoded != "" {
		data, err := base64.StdEncoding.DecodeString(ref.BytesBase64Encoded)
		if err != nil {
			return provider.Artifact{}, fmt.Errorf("genmedia: decode inline artifact: %w", err)
		}
		return provider.Artifact{Mode: provider.DeliveryInline, Bytes: data}, nil
	}
	if ref.URI != "" {
		return provider.Artifact{Mode: provider.DeliveryRemote, URI: ref.URI}, nil
	}

	return provider.Artifact{}, ErrNoArtifact
}

// FetchArtifact streams the file at uri into dst, authenticating with the
// API key header. The body is copied incrementally, never buffered whole.
func (c *Client) FetchArtifact(ctx context.Context, uri string, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("genmedia: create download request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("genmedia: download request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(body))
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("genmedia: stream download: %w", err)
	}
	return nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry
// for transient failures.
func (c *Client) doRequestWithRetry(ctx context.Context, method, url string, body []byte, result any) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("genmedia: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, method, url, body, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("genmedia: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *Client) doRequest(ctx context.Context, method, url string, body []byte, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("genmedia: create request: %w", err)
	}

	req.Header.Set("x-goog-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("genmedia: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("genmedia: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("genmedia: unmarshal response: %w", err)
		}
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
