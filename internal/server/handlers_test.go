package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pitchkit/adgen-api/internal/job"
	"github.com/pitchkit/adgen-api/internal/provider"
	"github.com/pitchkit/adgen-api/internal/storage"
)

// mockProvider implements provider.Client for testing.
type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) StartVideo(ctx context.Context, req provider.VideoRequest) (provider.OperationHandle, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(provider.OperationHandle), args.Error(1)
}

func (m *mockProvider) StartMusic(ctx context.Context, req provider.MusicRequest) (provider.OperationHandle, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(provider.OperationHandle), args.Error(1)
}

func (m *mockProvider) PollOperation(ctx context.Context, op provider.OperationHandle) (provider.PollResult, error) {
	args := m.Called(ctx, op)
	return args.Get(0).(provider.PollResult), args.Error(1)
}

func (m *mockProvider) FetchArtifact(ctx context.Context, uri string, dst io.Writer) error {
	args := m.Called(ctx, uri, dst)
	return args.Error(0)
}

// stubMerger implements media.Merger with pass-through semantics for video-only
// jobs and a stub output file otherwise.
type stubMerger struct {
	outDir string
}

func (s stubMerger) Merge(_ context.Context, videoPath, audioPath string, _ float64) (string, error) {
	if audioPath == "" {
		return videoPath, nil
	}
	out := filepath.Join(s.outDir, "merged.mp4")
	if err := os.WriteFile(out, []byte("merged"), 0600); err != nil {
		return "", err
	}
	return out, nil
}

func (s stubMerger) Duration(_ context.Context, _ string) (float64, error) {
	return 8, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, prov provider.Client) http.Handler {
	t.Helper()

	dir := t.TempDir()
	artifacts, err := storage.NewLocalStore(dir, discardLogger())
	require.NoError(t, err)

	svc := job.NewService(job.NewMemoryStore(), prov, stubMerger{outDir: dir}, artifacts, discardLogger())
	h := NewHandlers(svc, discardLogger())

	return NewRouter(h, discardLogger(), DefaultConfig())
}

func videoHandle() provider.OperationHandle {
	return provider.HandleFromName("models/veo-test/operations/video-op")
}

func doRequest(router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var out ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &mockProvider{})

	rr := doRequest(router, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var out HealthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	assert.Equal(t, "ok", out.Status)
}

func TestCreateAd_InvalidJSON(t *testing.T) {
	router := newTestRouter(t, &mockProvider{})

	rr := doRequest(router, http.MethodPost, "/ads", []byte("{not json"))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_JSON", decodeError(t, rr).Code)
}

func TestCreateAd_MissingPrompt(t *testing.T) {
	router := newTestRouter(t, &mockProvider{})

	body, _ := json.Marshal(CreateAdRequest{MusicPrompt: "music only"})
	rr := doRequest(router, http.MethodPost, "/ads", body)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rr).Code)
}

func TestCreateAd_InvalidImage(t *testing.T) {
	router := newTestRouter(t, &mockProvider{})

	body, _ := json.Marshal(CreateAdRequest{
		VideoPrompt: "a coffee shop opens",
		ImageBase64: "!!!not-base64!!!",
	})
	rr := doRequest(router, http.MethodPost, "/ads", body)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rr).Code)
}

func TestCreateAd_WhitespacePrompt(t *testing.T) {
	router := newTestRouter(t, &mockProvider{})

	body, _ := json.Marshal(CreateAdRequest{VideoPrompt: "   "})
	rr := doRequest(router, http.MethodPost, "/ads", body)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "MISSING_PROMPT", decodeError(t, rr).Code)
}

func TestCreateAd_ProviderFailure(t *testing.T) {
	prov := &mockProvider{}
	prov.On("StartVideo", mock.Anything, mock.Anything).
		Return(provider.OperationHandle{}, assert.AnError)
	router := newTestRouter(t, prov)

	body, _ := json.Marshal(CreateAdRequest{VideoPrompt: "a coffee shop opens"})
	rr := doRequest(router, http.MethodPost, "/ads", body)

	require.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "GENERATION_START_FAILED", decodeError(t, rr).Code)
}

func TestCreateAd_Success(t *testing.T) {
	prov := &mockProvider{}
	prov.On("StartVideo", mock.Anything, mock.Anything).Return(videoHandle(), nil)
	router := newTestRouter(t, prov)

	body, _ := json.Marshal(CreateAdRequest{VideoPrompt: "a robot unboxes a package"})
	rr := doRequest(router, http.MethodPost, "/ads", body)

	require.Equal(t, http.StatusAccepted, rr.Code)
	var out CreateAdResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	assert.Equal(t, "video-op", out.JobID)
	assert.Equal(t, string(job.OverallProcessing), out.Status)

	prov.AssertExpectations(t)
}

func TestGetAd_NotFound(t *testing.T) {
	router := newTestRouter(t, &mockProvider{})

	rr := doRequest(router, http.MethodGet, "/ads/nonexistent", nil)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decodeError(t, rr).Code)
}

func TestGetAd_ProgressesToComplete(t *testing.T) {
	prov := &mockProvider{}
	prov.On("StartVideo", mock.Anything, mock.Anything).Return(videoHandle(), nil)
	prov.On("PollOperation", mock.Anything, mock.Anything).
		Return(provider.PollResult{}, nil).Once()
	prov.On("PollOperation", mock.Anything, mock.Anything).
		Return(provider.PollResult{
			Done:     true,
			Artifact: provider.Artifact{Mode: provider.DeliveryInline, Bytes: []byte("video-bytes")},
		}, nil)
	router := newTestRouter(t, prov)

	body, _ := json.Marshal(CreateAdRequest{VideoPrompt: "a robot unboxes a package"})
	rr := doRequest(router, http.MethodPost, "/ads", body)
	require.Equal(t, http.StatusAccepted, rr.Code)

	// First poll: the operation is still running.
	rr = doRequest(router, http.MethodGet, "/ads/video-op", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var status AdStatusResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
	assert.Equal(t, string(job.OverallProcessing), status.Status)

	// Second poll: done, downloaded, merged.
	rr = doRequest(router, http.MethodGet, "/ads/video-op", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
	assert.Equal(t, string(job.OverallComplete), status.Status)
	assert.Empty(t, status.Error)
}

func TestGetAd_ReportsFailure(t *testing.T) {
	prov := &mockProvider{}
	prov.On("StartVideo", mock.Anything, mock.Anything).Return(videoHandle(), nil)
	prov.On("PollOperation", mock.Anything, mock.Anything).
		Return(provider.PollResult{Done: true, Err: "safety filter rejection"}, nil)
	router := newTestRouter(t, prov)

	body, _ := json.Marshal(CreateAdRequest{VideoPrompt: "prompt"})
	rr := doRequest(router, http.MethodPost, "/ads", body)
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = doRequest(router, http.MethodGet, "/ads/video-op", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var status AdStatusResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&status))
	assert.Equal(t, string(job.OverallFailed), status.Status)
	assert.NotEmpty(t, status.Error)
}

func TestDownloadAd(t *testing.T) {
	prov := &mockProvider{}
	prov.On("StartVideo", mock.Anything, mock.Anything).Return(videoHandle(), nil)
	prov.On("PollOperation", mock.Anything, mock.Anything).
		Return(provider.PollResult{
			Done:     true,
			Artifact: provider.Artifact{Mode: provider.DeliveryInline, Bytes: []byte("video-bytes")},
		}, nil)
	router := newTestRouter(t, prov)

	body, _ := json.Marshal(CreateAdRequest{VideoPrompt: "a robot unboxes a package"})
	rr := doRequest(router, http.MethodPost, "/ads", body)
	require.Equal(t, http.StatusAccepted, rr.Code)

	// Download before the job is complete.
	rr = doRequest(router, http.MethodGet, "/ads/video-op/download", nil)
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "AD_NOT_READY", decodeError(t, rr).Code)

	// Complete the job, then download.
	rr = doRequest(router, http.MethodGet, "/ads/video-op", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(router, http.MethodGet, "/ads/video-op/download", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "video/mp4", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "ad-video-op.mp4")
	assert.Equal(t, "video-bytes", rr.Body.String())

	// The record is gone after a completed download.
	rr = doRequest(router, http.MethodGet, "/ads/video-op/download", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decodeError(t, rr).Code)

	rr = doRequest(router, http.MethodGet, "/ads/video-op", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDownloadAd_UnknownJob(t *testing.T) {
	router := newTestRouter(t, &mockProvider{})

	rr := doRequest(router, http.MethodGet, "/ads/nonexistent/download", nil)

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decodeError(t, rr).Code)
}
