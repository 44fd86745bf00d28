package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pitchkit/adgen-api/internal/media"
	"github.com/pitchkit/adgen-api/internal/provider"
	"github.com/pitchkit/adgen-api/internal/storage"
)

// ErrEmptyPrompt is returned when a launch is attempted without a video prompt.
var ErrEmptyPrompt = errors.New("video prompt is required")

// ErrWaitTimeout is returned when WaitForCompletion gives up before the job
// reaches a terminal state.
var ErrWaitTimeout = errors.New("timed out waiting for job completion")

// LaunchInput contains the parameters for starting an ad-generation job.
type LaunchInput struct {
	// VideoPrompt describes the ad video to generate. Required.
	VideoPrompt string
	// MusicPrompt describes the background music. Optional; when empty the
	// job runs video-only.
	MusicPrompt string
	// ImageBytes is an optional reference image for the video generation.
	ImageBytes []byte
	// ImageMIMEType describes ImageBytes, e.g. "image/png".
	ImageMIMEType string
}

// Service orchestrates ad-generation jobs: it launches the two remote
// operations, advances them on each Refresh call, merges completed artifacts,
// and hands the deliverable off for download. All progress is caller-driven;
// a job only advances while something polls it (or the optional Sweeper is
// enabled).
type Service struct {
	store     Store
	provider  provider.Client
	merger    media.Merger
	artifacts storage.TempStore
	publisher storage.Publisher
	logger    *slog.Logger

	// adDurationSec is the duration requested from both generators and the
	// fallback merge target when the video cannot be probed.
	adDurationSec int
}

// Option configures a Service.
type Option func(*Service)

// WithAdDuration sets the requested ad duration in seconds.
func WithAdDuration(seconds int) Option {
	return func(s *Service) {
		if seconds > 0 {
			s.adDurationSec = seconds
		}
	}
}

// WithPublisher enables publishing of final artifacts to durable storage.
func WithPublisher(p storage.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// NewService creates a new job Service.
func NewService(store Store, prov provider.Client, merger media.Merger, artifacts storage.TempStore, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:         store,
		provider:      prov,
		merger:        merger,
		artifacts:     artifacts,
		logger:        logger,
		adDurationSec: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Launch starts an ad-generation job and returns its key without blocking on
// completion. The video operation must start successfully or no record is
// created; a music start failure is absorbed and the job degrades to
// video-only.
func (s *Service) Launch(ctx context.Context, in LaunchInput) (string, error) {
	if strings.TrimSpace(in.VideoPrompt) == "" {
		return "", ErrEmptyPrompt
	}

	videoOp, err := s.provider.StartVideo(ctx, provider.VideoRequest{
		Prompt:          in.VideoPrompt,
		DurationSeconds: s.adDurationSec,
		ImageBytes:      in.ImageBytes,
		ImageMIMEType:   in.ImageMIMEType,
	})
	if err != nil {
		return "", fmt.Errorf("start video generation: %w", err)
	}

	rec := NewRecord(videoOp, in.VideoPrompt, in.MusicPrompt)

	if strings.TrimSpace(in.MusicPrompt) != "" {
		musicOp, err := s.provider.StartMusic(ctx, provider.MusicRequest{
			Prompt:          in.MusicPrompt,
			DurationSeconds: s.adDurationSec,
		})
		if err != nil {
			// Music is an enhancement, not a correctness requirement: the
			// job proceeds video-only.
			s.logger.Warn("music generation failed to start, continuing video-only",
				slog.String("job_key", rec.Key),
				slog.String("error", err.Error()),
			)
		} else {
			rec.MusicOp = musicOp
			rec.MusicStage = MusicProcessing
		}
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		return "", fmt.Errorf("insert job record: %w", err)
	}

	s.logger.Info("job launched",
		slog.String("job_key", rec.Key),
		slog.String("video_op", rec.VideoOp.Name),
		slog.Bool("music_requested", in.MusicPrompt != ""),
		slog.String("music_stage", string(rec.MusicStage)),
	)

	return rec.Key, nil
}

// Get returns the current record for key without advancing it.
func (s *Service) Get(ctx context.Context, key string) (*Record, error) {
	return s.store.Find(ctx, key)
}

// Refresh advances the job by at most one step per stage and returns the
// resulting record. It is a pure read once the job is terminal and is safe
// to call concurrently: the store serializes refreshes per key, so two
// simultaneous polls cannot download the same artifact twice.
func (s *Service) Refresh(ctx context.Context, key string) (*Record, error) {
	return s.store.Update(ctx, key, func(rec *Record) error {
		if rec.Terminal() {
			return nil
		}

		// Video first, music second, merge check last. Both stages are
		// polled in the same call even when the video just failed.
		if rec.VideoStage == VideoProcessing {
			s.refreshVideo(ctx, rec)
		}
		if rec.MusicStage == MusicProcessing {
			s.refreshMusic(ctx, rec)
		}

		if rec.VideoStage == VideoFailed {
			rec.Fail("video generation failed")
			s.artifacts.Cleanup(ctx, rec.IntermediatePaths()...)
			rec.VideoPath = ""
			rec.MusicPath = ""
			return nil
		}

		if rec.VideoStage == VideoDownloaded && rec.MusicStage.Terminal() {
			s.merge(ctx, rec)
		}
		return nil
	})
}

// refreshVideo polls the video operation and downloads its artifact when
// done. A provider-reported operation error is terminal for the stage;
// transport and download errors are transient and retried on the next poll.
func (s *Service) refreshVideo(ctx context.Context, rec *Record) {
	res, err := s.provider.PollOperation(ctx, rec.VideoOp)
	if err != nil {
		s.logger.Warn("video poll failed, will retry",
			slog.String("job_key", rec.Key),
			slog.String("error", err.Error()),
		)
		return
	}
	if !res.Done {
		return
	}

	if res.Err != "" {
		rec.VideoStage = VideoFailed
		rec.ErrMsg = "video generation failed: " + res.Err
		s.logger.Error("video operation failed",
			slog.String("job_key", rec.Key),
			slog.String("error", res.Err),
		)
		return
	}

	path, err := s.saveArtifact(ctx, "ad-video-"+rec.Key, res.Artifact)
	if err != nil {
		s.logger.Warn("video download failed, will retry",
			slog.String("job_key", rec.Key),
			slog.String("error", err.Error()),
		)
		return
	}

	rec.VideoPath = path
	rec.VideoStage = VideoDownloaded
	s.logger.Info("video artifact downloaded",
		slog.String("job_key", rec.Key),
		slog.String("path", path),
	)
}

// refreshMusic polls the music operation. Unlike video, a music failure is
// absorbed: the stage goes to failed and the job continues video-only.
func (s *Service) refreshMusic(ctx context.Context, rec *Record) {
	res, err := s.provider.PollOperation(ctx, rec.MusicOp)
	if err != nil {
		s.logger.Warn("music poll failed, will retry",
			slog.String("job_key", rec.Key),
			slog.String("error", err.Error()),
		)
		return
	}
	if !res.Done {
		return
	}

	if res.Err != "" {
		rec.MusicStage = MusicFailed
		s.logger.Warn("music operation failed, continuing video-only",
			slog.String("job_key", rec.Key),
			slog.String("error", res.Err),
		)
		return
	}

	path, err := s.saveArtifact(ctx, "ad-music-"+rec.Key, res.Artifact)
	if err != nil {
		s.logger.Warn("music download failed, will retry",
			slog.String("job_key", rec.Key),
			slog.String("error", err.Error()),
		)
		return
	}

	rec.MusicPath = path
	rec.MusicStage = MusicDownloaded
	s.logger.Info("music artifact downloaded",
		slog.String("job_key", rec.Key),
		slog.String("path", path),
	)
}

// saveArtifact writes a completed operation's output to a temp file,
// handling both delivery modes.
func (s *Service) saveArtifact(ctx context.Context, name string, art provider.Artifact) (string, error) {
	switch art.Mode {
	case provider.DeliveryInline:
		return s.artifacts.SaveTemp(ctx, name, bytes.NewReader(art.Bytes))
	case provider.DeliveryRemote:
		f, err := s.artifacts.CreateTemp(name)
		if err != nil {
			return "", err
		}
		path := f.Name()
		if err := s.provider.FetchArtifact(ctx, art.URI, f); err != nil {
			_ = f.Close()
			s.artifacts.Cleanup(ctx, path)
			return "", err
		}
		if err := f.Close(); err != nil {
			s.artifacts.Cleanup(ctx, path)
			return "", fmt.Errorf("close artifact file: %w", err)
		}
		return path, nil
	default:
		return "", errors.New("operation completed without an artifact")
	}
}

// merge reconciles the two artifacts into the final deliverable. Intermediate
// files are cleaned up on both outcomes; the merge itself never deletes its
// inputs.
func (s *Service) merge(ctx context.Context, rec *Record) {
	rec.Overall = OverallMerging

	audioPath := ""
	if rec.MusicStage == MusicDownloaded {
		audioPath = rec.MusicPath
	}

	target, err := s.merger.Duration(ctx, rec.VideoPath)
	if err != nil {
		s.logger.Warn("could not probe video duration, using configured target",
			slog.String("job_key", rec.Key),
			slog.String("error", err.Error()),
		)
		target = float64(s.adDurationSec)
	}

	finalPath, err := s.merger.Merge(ctx, rec.VideoPath, audioPath, target)
	if err != nil {
		rec.Fail("merge failed: " + err.Error())
		s.logger.Error("merge failed",
			slog.String("job_key", rec.Key),
			slog.String("error", err.Error()),
		)
	} else {
		rec.FinalPath = finalPath
		rec.Overall = OverallComplete
		s.logger.Info("job complete",
			slog.String("job_key", rec.Key),
			slog.String("final_path", finalPath),
		)
		s.publish(ctx, rec)
	}

	s.artifacts.Cleanup(ctx, rec.IntermediatePaths()...)
	if rec.VideoPath != rec.FinalPath {
		rec.VideoPath = ""
	}
	if rec.MusicPath != rec.FinalPath {
		rec.MusicPath = ""
	}
}

// publish uploads the final artifact when a publisher is configured. Failure
// to publish does not fail the job; the local download path still works.
func (s *Service) publish(ctx context.Context, rec *Record) {
	if s.publisher == nil {
		return
	}

	f, err := os.Open(rec.FinalPath) // #nosec G304 - path is created by this service
	if err != nil {
		s.logger.Warn("could not open final artifact for publishing",
			slog.String("job_key", rec.Key),
			slog.String("error", err.Error()),
		)
		return
	}
	defer func() { _ = f.Close() }()

	url, err := s.publisher.Publish(ctx, "ads/"+rec.Key+".mp4", f)
	if err != nil {
		s.logger.Warn("failed to publish final artifact",
			slog.String("job_key", rec.Key),
			slog.String("error", err.Error()),
		)
		return
	}

	rec.PublishedURL = url
	s.logger.Info("final artifact published",
		slog.String("job_key", rec.Key),
		slog.String("url", url),
	)
}

// OpenFinal verifies the job is complete and opens its final artifact for
// streaming. It returns ErrNotFound for unknown keys, ErrNotReady when the
// job is not complete, and ErrArtifactMissing when the job claims completion
// but the file is gone. The latter is logged distinctly because it is an
// invariant violation.
func (s *Service) OpenFinal(ctx context.Context, key string) (io.ReadCloser, *Record, error) {
	rec, err := s.store.Find(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	if rec.Overall != OverallComplete {
		return nil, rec, ErrNotReady
	}

	f, err := os.Open(rec.FinalPath) // #nosec G304 - path is created by this service
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Error("inconsistent job state: complete but final artifact missing",
				slog.String("job_key", key),
				slog.String("final_path", rec.FinalPath),
			)
			return nil, rec, ErrArtifactMissing
		}
		return nil, rec, fmt.Errorf("open final artifact: %w", err)
	}

	return f, rec, nil
}

// FinishDownload reclaims the final artifact and deletes the job record.
// Called only after the artifact has been fully streamed to the caller;
// polling the key afterwards returns not-found.
func (s *Service) FinishDownload(ctx context.Context, key string) error {
	rec, err := s.store.Find(ctx, key)
	if err != nil {
		return err
	}

	s.artifacts.Cleanup(ctx, rec.FinalPath)
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}

	s.logger.Info("job record removed after download",
		slog.String("job_key", key),
	)
	return nil
}

// WaitForCompletion refreshes the job on a fixed interval until it reaches a
// terminal state or the timeout elapses. A timeout of zero waits until ctx
// is done. This is the canonical blocking helper; the HTTP surface exposes
// only the single-step Refresh.
func (s *Service) WaitForCompletion(ctx context.Context, key string, interval, timeout time.Duration) (*Record, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		rec, err := s.Refresh(ctx, key)
		if err != nil {
			return nil, err
		}
		if rec.Terminal() {
			return rec, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return rec, ErrWaitTimeout
			}
			return rec, fmt.Errorf("wait cancelled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
