package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/pitchkit/adgen-api/internal/job"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   *job.Service
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateAd handles POST /ads requests. Only the remote start calls happen
// here; the key is returned without waiting for generation.
func (h *Handlers) CreateAd(w http.ResponseWriter, r *http.Request) {
	var req CreateAdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	var imageBytes []byte
	if req.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid image payload", "INVALID_IMAGE")
			return
		}
		imageBytes = data
	}

	key, err := h.service.Launch(r.Context(), job.LaunchInput{
		VideoPrompt:   req.VideoPrompt,
		MusicPrompt:   req.MusicPrompt,
		ImageBytes:    imageBytes,
		ImageMIMEType: req.ImageMIMEType,
	})
	if err != nil {
		if errors.Is(err, job.ErrEmptyPrompt) {
			writeError(w, http.StatusBadRequest, err.Error(), "MISSING_PROMPT")
			return
		}
		h.logger.Error("failed to launch job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to start generation", "GENERATION_START_FAILED")
		return
	}

	writeJSON(w, http.StatusAccepted, CreateAdResponse{
		JobID:  key,
		Status: string(job.OverallProcessing),
	})
}

// GetAd handles GET /ads/{id} requests. Each poll advances the job by at
// most one step per stage; repeated polls of a terminal job are pure reads.
func (h *Handlers) GetAd(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("id")
	if key == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	rec, err := h.service.Refresh(r.Context(), key)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to refresh job",
			slog.String("job_key", key),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to refresh job", "JOB_REFRESH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, AdStatusResponse{
		JobID:    rec.Key,
		Status:   string(rec.Overall),
		Error:    rec.ErrMsg,
		VideoURL: rec.PublishedURL,
	})
}

// DownloadAd handles GET /ads/{id}/download requests. On a fully streamed
// response the final artifact is reclaimed and the job record deleted, so a
// second download returns not-found.
func (h *Handlers) DownloadAd(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("id")
	if key == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	f, _, err := h.service.OpenFinal(r.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrNotFound):
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		case errors.Is(err, job.ErrNotReady):
			writeError(w, http.StatusConflict, "ad is not yet ready", "AD_NOT_READY")
		case errors.Is(err, job.ErrArtifactMissing):
			writeError(w, http.StatusNotFound, "ad file no longer available", "ARTIFACT_MISSING")
		default:
			h.logger.Error("failed to open final artifact",
				slog.String("job_key", key),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to open ad file", "DOWNLOAD_FAILED")
		}
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "ad-"+key+".mp4"))

	if _, err := io.Copy(w, f); err != nil {
		// The transfer did not complete; keep the record so the client can
		// retry the download.
		h.logger.Warn("download interrupted, keeping job record",
			slog.String("job_key", key),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := h.service.FinishDownload(r.Context(), key); err != nil {
		h.logger.Error("failed to finish download",
			slog.String("job_key", key),
			slog.String("error", err.Error()),
		)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
